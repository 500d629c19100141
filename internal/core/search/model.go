package search

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// RankedChunk は類似度スコア付きの検索結果を表す
type RankedChunk struct {
	ChunkID    uuid.UUID         `json:"chunkID"`
	SessionID  string            `json:"sessionID"`
	SourceType memory.SourceType `json:"sourceType"`
	DocumentID *uuid.UUID        `json:"documentID,omitempty"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SessionSearchParams はセッションスコープ検索のパラメータを表す
type SessionSearchParams struct {
	SessionID   string
	Query       string                       // QueryVector 未指定時に Embedding する
	QueryVector mo.Option[[]float32]         // 事前計算済みクエリベクトル
	SourceType  mo.Option[memory.SourceType] // 由来での絞り込み（省略時は両方）
	TopK        int                          // デフォルト: 10
	MinScore    mo.Option[float64]
}

// GlobalSearchParams は全セッション横断のドキュメント検索パラメータを表す
type GlobalSearchParams struct {
	Query       string
	QueryVector mo.Option[[]float32]
	TopK        int // デフォルト: 10
	MinScore    mo.Option[float64]
}

// DefaultTopK は検索上限の省略時デフォルト
const DefaultTopK = 10
