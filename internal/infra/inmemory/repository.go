package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// Repository は memory.Repository のインメモリ実装。
// ローカル実行とユニットテストで使用する。チャンクは挿入順のスライスで保持し、
// セッション一覧の安定順序を保証する。
type Repository struct {
	mu        sync.RWMutex
	chunks    []*memory.Chunk
	documents []*memory.Document
}

// NewRepository は新しいインメモリリポジトリを作成する
func NewRepository() *Repository {
	return &Repository{}
}

// コンパイル時の型チェック
var _ memory.Repository = (*Repository)(nil)

// CreateChunk はチャンクを挿入順リストの末尾に追加する
func (r *Repository) CreateChunk(ctx context.Context, chunk *memory.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *chunk
	r.chunks = append(r.chunks, &c)
	return nil
}

// ListChunksBySession はセッション内のチャンクを挿入順で返す
func (r *Repository) ListChunksBySession(ctx context.Context, sessionID string, sourceType mo.Option[memory.SourceType]) ([]*memory.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*memory.Chunk
	for _, c := range r.chunks {
		if c.SessionID != sessionID {
			continue
		}
		if st, ok := sourceType.Get(); ok && c.SourceType != st {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// ListAllDocumentChunks は全セッション横断で document 由来チャンクを返す
func (r *Repository) ListAllDocumentChunks(ctx context.Context) ([]*memory.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*memory.Chunk
	for _, c := range r.chunks {
		if c.SourceType == memory.SourceTypeDocument {
			result = append(result, c)
		}
	}
	return result, nil
}

// ListChunksByDocument は chunkIndex 昇順（nil は末尾）で返す
func (r *Repository) ListChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*memory.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*memory.Chunk
	for _, c := range r.chunks {
		if c.DocumentID != nil && *c.DocumentID == documentID {
			result = append(result, c)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].ChunkIndex, result[j].ChunkIndex
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})

	return result, nil
}

// DeleteChunk はチャンクを削除する。存在しない ID は no-op。
func (r *Repository) DeleteChunk(ctx context.Context, chunkID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.chunks {
		if c.ID == chunkID {
			r.chunks = append(r.chunks[:i], r.chunks[i+1:]...)
			return nil
		}
	}
	return nil
}

// DeleteChunksByDocument はドキュメント所有チャンクをまとめて削除する
func (r *Repository) DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteChunksByDocumentLocked(documentID)
	return nil
}

func (r *Repository) deleteChunksByDocumentLocked(documentID uuid.UUID) {
	kept := r.chunks[:0]
	for _, c := range r.chunks {
		if c.DocumentID != nil && *c.DocumentID == documentID {
			continue
		}
		kept = append(kept, c)
	}
	r.chunks = kept
}

// CreateDocument はドキュメントを追加する
func (r *Repository) CreateDocument(ctx context.Context, doc *memory.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := *doc
	r.documents = append(r.documents, &d)
	return nil
}

// GetDocumentByID は ID でドキュメントを取得する
func (r *Repository) GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*memory.Document], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.documents {
		if d.ID == id {
			copied := *d
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*memory.Document](), nil
}

// ListDocumentsBySession はセッション内のドキュメントを挿入順で返す
func (r *Repository) ListDocumentsBySession(ctx context.Context, sessionID string) ([]*memory.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*memory.Document
	for _, d := range r.documents {
		if d.SessionID == sessionID {
			copied := *d
			result = append(result, &copied)
		}
	}
	return result, nil
}

// UpdateDocument はドキュメントを置き換える
func (r *Repository) UpdateDocument(ctx context.Context, doc *memory.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range r.documents {
		if d.ID == doc.ID {
			copied := *doc
			r.documents[i] = &copied
			return nil
		}
	}
	return memory.ErrDocumentNotFound
}

// DeleteDocument はドキュメントと所有チャンクをカスケード削除する。
// 存在しない ID は no-op。
func (r *Repository) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, d := range r.documents {
		if d.ID == documentID {
			r.documents = append(r.documents[:i], r.documents[i+1:]...)
			break
		}
	}
	r.deleteChunksByDocumentLocked(documentID)
	return nil
}
