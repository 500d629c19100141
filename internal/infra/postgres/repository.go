package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
	"github.com/acdc-digital/agent-memory/internal/platform/database"
)

// Repository は memory.Repository を実装する PostgreSQL リポジトリ。
//
// ベクトル列の保存に pgvector を使用するが、類似度ランキングは
// コア層のインプロセス厳密走査で行うため、ここでは候補集合の取得のみを担う
// （`ORDER BY embedding <=> $1` のような DB 側検索は意図的に使わない）。
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は新しい Repository を作成する
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// コンパイル時の型チェック
var _ memory.Repository = (*Repository)(nil)

const chunkColumns = `id, session_id, source_type, text, embedding, model, message_id, document_id, chunk_index, metadata, created_at`

const documentColumns = `id, session_id, name, file_ref, file_type, file_size, status, chunk_count, error_message, uploaded_at, processed_at`

// === Chunk ===

func (r *Repository) CreateChunk(ctx context.Context, chunk *memory.Chunk) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chunks (id, session_id, source_type, text, embedding, model, message_id, document_id, chunk_index, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		UUIDToPgtype(chunk.ID),
		chunk.SessionID,
		string(chunk.SourceType),
		chunk.Text,
		pgvector.NewVector(chunk.Vector),
		chunk.Model,
		StringPtrToPgtext(chunk.MessageID),
		UUIDPtrToPgtype(chunk.DocumentID),
		IntPtrToPgInt4(chunk.ChunkIndex),
		StringPtrToPgtext(chunk.Metadata),
		TimeToPgtype(chunk.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert chunk: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) ListChunksBySession(ctx context.Context, sessionID string, sourceType mo.Option[memory.SourceType]) ([]*memory.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE session_id = $1`
	args := []any{sessionID}
	if st, ok := sourceType.Get(); ok {
		query += ` AND source_type = $2`
		args = append(args, string(st))
	}
	query += ` ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list session chunks: %v", memory.ErrStoreUnavailable, err)
	}
	return scanChunks(rows)
}

func (r *Repository) ListAllDocumentChunks(ctx context.Context) ([]*memory.Chunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chunkColumns+` FROM chunks WHERE source_type = $1 ORDER BY seq`,
		string(memory.SourceTypeDocument),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list document chunks: %v", memory.ErrStoreUnavailable, err)
	}
	return scanChunks(rows)
}

func (r *Repository) ListChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*memory.Chunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC NULLS LAST, seq`,
		UUIDToPgtype(documentID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list chunks by document: %v", memory.ErrStoreUnavailable, err)
	}
	return scanChunks(rows)
}

func (r *Repository) DeleteChunk(ctx context.Context, chunkID uuid.UUID) error {
	// 存在しない ID は no-op
	_, err := r.pool.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, UUIDToPgtype(chunkID))
	if err != nil {
		return fmt.Errorf("%w: failed to delete chunk: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, UUIDToPgtype(documentID))
	if err != nil {
		return fmt.Errorf("%w: failed to delete chunks by document: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// === Document ===

func (r *Repository) CreateDocument(ctx context.Context, doc *memory.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, session_id, name, file_ref, file_type, file_size, status, chunk_count, error_message, uploaded_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		UUIDToPgtype(doc.ID),
		doc.SessionID,
		doc.Name,
		StringPtrToPgtext(doc.FileRef),
		StringPtrToPgtext(doc.FileType),
		doc.FileSize,
		string(doc.Status),
		int32(doc.ChunkCount),
		StringPtrToPgtext(doc.ErrorMessage),
		TimeToPgtype(doc.UploadedAt),
		TimePtrToPgtype(doc.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert document: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) GetDocumentByID(ctx context.Context, id uuid.UUID) (mo.Option[*memory.Document], error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		UUIDToPgtype(id),
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*memory.Document](), nil
		}
		return mo.None[*memory.Document](), fmt.Errorf("%w: failed to get document: %v", memory.ErrStoreUnavailable, err)
	}
	return mo.Some(doc), nil
}

func (r *Repository) ListDocumentsBySession(ctx context.Context, sessionID string) ([]*memory.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE session_id = $1 ORDER BY uploaded_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list documents: %v", memory.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var docs []*memory.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %v", memory.ErrStoreUnavailable, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read documents: %v", memory.ErrStoreUnavailable, err)
	}
	return docs, nil
}

func (r *Repository) UpdateDocument(ctx context.Context, doc *memory.Document) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, chunk_count = $3, error_message = $4, processed_at = $5
		WHERE id = $1`,
		UUIDToPgtype(doc.ID),
		string(doc.Status),
		int32(doc.ChunkCount),
		StringPtrToPgtext(doc.ErrorMessage),
		TimePtrToPgtype(doc.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update document: %v", memory.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument はドキュメントと所有チャンクを単一トランザクションで削除する。
// 存在しない ID は no-op。
func (r *Repository) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, UUIDToPgtype(documentID)); err != nil {
			return struct{}{}, fmt.Errorf("failed to delete chunks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, UUIDToPgtype(documentID)); err != nil {
			return struct{}{}, fmt.Errorf("failed to delete document: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete document cascade: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// === scanning ===

func scanChunks(rows pgx.Rows) ([]*memory.Chunk, error) {
	defer rows.Close()

	var chunks []*memory.Chunk
	for rows.Next() {
		var (
			id         pgtype.UUID
			sessionID  string
			sourceType string
			text       string
			embedding  pgvector.Vector
			model      string
			messageID  pgtype.Text
			documentID pgtype.UUID
			chunkIndex pgtype.Int4
			metadata   pgtype.Text
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &sessionID, &sourceType, &text, &embedding, &model, &messageID, &documentID, &chunkIndex, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk: %v", memory.ErrStoreUnavailable, err)
		}
		chunks = append(chunks, &memory.Chunk{
			ID:         PgtypeToUUID(id),
			SessionID:  sessionID,
			SourceType: memory.SourceType(sourceType),
			Text:       text,
			Vector:     embedding.Slice(),
			Model:      model,
			MessageID:  PgtextToStringPtr(messageID),
			DocumentID: PgtypeToUUIDPtr(documentID),
			ChunkIndex: PgtypeToIntPtr(chunkIndex),
			Metadata:   PgtextToStringPtr(metadata),
			CreatedAt:  PgtypeToTime(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read chunks: %v", memory.ErrStoreUnavailable, err)
	}
	return chunks, nil
}

func scanDocument(row pgx.Row) (*memory.Document, error) {
	var (
		id           pgtype.UUID
		sessionID    string
		name         string
		fileRef      pgtype.Text
		fileType     pgtype.Text
		fileSize     int64
		status       string
		chunkCount   int32
		errorMessage pgtype.Text
		uploadedAt   pgtype.Timestamptz
		processedAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sessionID, &name, &fileRef, &fileType, &fileSize, &status, &chunkCount, &errorMessage, &uploadedAt, &processedAt); err != nil {
		return nil, err
	}
	return &memory.Document{
		ID:           PgtypeToUUID(id),
		SessionID:    sessionID,
		Name:         name,
		FileRef:      PgtextToStringPtr(fileRef),
		FileType:     PgtextToStringPtr(fileType),
		FileSize:     fileSize,
		Status:       memory.DocumentStatus(status),
		ChunkCount:   int(chunkCount),
		ErrorMessage: PgtextToStringPtr(errorMessage),
		UploadedAt:   PgtypeToTime(uploadedAt),
		ProcessedAt:  PgtypeToTimePtr(processedAt),
	}, nil
}
