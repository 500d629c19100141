package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はチャンク・ドキュメントの全データアクセスを統合するインターフェース。
// テスト時のモック用に消費者側で定義する。
//
// 一覧系は挿入順（セッション内の書き込み順）で返す。順序はページング等の
// 安定した基準であって、意味的な優先度を持たない。
type Repository interface {
	// Chunk
	CreateChunk(ctx context.Context, chunk *Chunk) error
	// ListChunksBySession はセッション内のチャンクを挿入順で返す。
	// sourceType 指定時はその由来のみに絞り込む。
	ListChunksBySession(ctx context.Context, sessionID string, sourceType mo.Option[SourceType]) ([]*Chunk, error)
	// ListAllDocumentChunks は全セッション横断で document 由来チャンクを返す。
	// ドキュメント知識はセッションをまたいで共有する設計のため、意図的に非スコープ。
	ListAllDocumentChunks(ctx context.Context) ([]*Chunk, error)
	// ListChunksByDocument は chunkIndex 昇順（nil は末尾）で返す。
	ListChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*Chunk, error)
	// DeleteChunk は存在しない ID に対しては no-op
	DeleteChunk(ctx context.Context, chunkID uuid.UUID) error
	DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) error

	// Document
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*Document], error)
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]*Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	// DeleteDocument は所有チャンクをカスケード削除する。
	// 存在しない ID に対しては no-op。
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error
}
