package recall

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// Provenance はコンテキスト断片の出自を表す
type Provenance string

const (
	// ProvenanceFlash は直近会話ウィンドウ由来（スコアに依らず含まれる）
	ProvenanceFlash Provenance = "flash"
	// ProvenanceChatSemantic はセッション内 chat チャンクの意味検索由来
	ProvenanceChatSemantic Provenance = "chat-semantic"
	// ProvenanceDocumentSemantic はグローバルドキュメント検索由来
	ProvenanceDocumentSemantic Provenance = "document-semantic"
)

// ContextFragment は LLM 呼び出し側へ渡すコンテキスト断片を表す
type ContextFragment struct {
	ChunkID    uuid.UUID          `json:"chunkID"`
	SessionID  string             `json:"sessionID"`
	SourceType memory.SourceType  `json:"sourceType"`
	Provenance Provenance         `json:"provenance"`
	Text       string             `json:"text"`
	Score      mo.Option[float64] `json:"score,omitempty"` // flash 断片はスコアを持たない
	CreatedAt  time.Time          `json:"createdAt"`
}

// ContextResult はコンテキスト集約の結果を表す
type ContextResult struct {
	Fragments []*ContextFragment `json:"fragments"`
	// Degraded はクエリ Embedding の失敗により Stage 2（意味検索）を
	// スキップし、Flash ウィンドウのみで構成されたことを示す
	Degraded bool `json:"degraded"`
}

// RetrieveParams はコンテキスト集約のパラメータを表す
type RetrieveParams struct {
	SessionID   string
	Query       string               // QueryVector 未指定時に Embedding する
	QueryVector mo.Option[[]float32] // 事前計算済みクエリベクトル
	FlashSize   int                  // Stage 1 の直近チャンク数（デフォルト: 10）
	TopK        int                  // Stage 2 の各プールからの取得数（デフォルト: 5）
	MinScore    mo.Option[float64]   // Stage 2 の類似度閾値（デフォルト: 0.3）
}

const (
	// DefaultFlashSize は Flash ウィンドウのデフォルトサイズ
	DefaultFlashSize = 10
	// DefaultSemanticTopK は意味検索プールごとのデフォルト取得数
	DefaultSemanticTopK = 5
	// DefaultMinScore は意味検索のデフォルト類似度閾値
	DefaultMinScore = 0.3
)
