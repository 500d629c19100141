package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// Embedder はバッチ対応の Embedding 生成インターフェース
type Embedder interface {
	// Embed は単一テキストの Embedding を生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed は複数テキストの Embedding をまとめて生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// Model は Embedding モデル識別子を返す
	Model() string
}

// DefaultEmbeddingBatchSize は Embedding API のバッチサイズ上限
const DefaultEmbeddingBatchSize = 100

// IngestParams はドキュメント取り込みのパラメータを表す
type IngestParams struct {
	SessionID string
	Name      string
	Text      string
	FileRef   mo.Option[string]
	FileType  mo.Option[string]
}

// IngestResult はドキュメント取り込みの結果を表す
type IngestResult struct {
	Document   *memory.Document
	ChunkCount int
}

// IngestService はドキュメント取り込みパイプラインを提供する。
//
// uploading → processing → {ready, error} のライフサイクルを駆動し、
// テキストをチャンク化 → バッチ Embedding → ChunkIndex 昇順で永続化する。
// 途中で失敗した場合は書き込み済みチャンクを削除して error 状態へ遷移させ、
// 孤児チャンクが検索に紛れ込まない回復可能な状態を保つ。
type IngestService struct {
	repository memory.Repository
	documents  *memory.DocumentService
	writer     *memory.Writer
	embedder   Embedder
	chunker    *TokenChunker
	logger     *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*IngestService)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(s *IngestService) {
		s.logger = logger
	}
}

// NewIngestService は新しい IngestService を作成する
func NewIngestService(
	repository memory.Repository,
	documents *memory.DocumentService,
	writer *memory.Writer,
	embedder Embedder,
	chunker *TokenChunker,
	opts ...IngestServiceOption,
) *IngestService {
	svc := &IngestService{
		repository: repository,
		documents:  documents,
		writer:     writer,
		embedder:   embedder,
		chunker:    chunker,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Ingest はテキストをドキュメントとして取り込み、検索可能な状態にする
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if params.Text == "" {
		return nil, fmt.Errorf("text is required")
	}

	doc, err := s.documents.CreateDocument(ctx, memory.CreateDocumentParams{
		SessionID: params.SessionID,
		Name:      params.Name,
		FileRef:   params.FileRef,
		FileType:  params.FileType,
		FileSize:  int64(len(params.Text)),
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.documents.UpdateDocumentStatus(ctx, doc.ID, memory.UpdateStatusParams{
		Status: memory.DocumentStatusProcessing,
	}); err != nil {
		return nil, err
	}

	chunkCount, err := s.process(ctx, doc, params.Text)
	if err != nil {
		s.logger.Error("ingestion failed",
			"documentID", doc.ID.String(),
			"error", err,
		)
		return nil, s.markFailed(ctx, doc, err)
	}

	updated, err := s.documents.UpdateDocumentStatus(ctx, doc.ID, memory.UpdateStatusParams{
		Status:     memory.DocumentStatusReady,
		ChunkCount: mo.Some(chunkCount),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		"documentID", doc.ID.String(),
		"name", doc.Name,
		"chunks", chunkCount,
	)

	return &IngestResult{Document: updated, ChunkCount: chunkCount}, nil
}

// process はチャンク化と Embedding 生成、チャンク書き込みを実行する
func (s *IngestService) process(ctx context.Context, doc *memory.Document, text string) (int, error) {
	slices, err := s.chunker.Split(text)
	if err != nil {
		return 0, fmt.Errorf("failed to split text: %w", err)
	}

	written := 0
	for start := 0; start < len(slices); start += DefaultEmbeddingBatchSize {
		end := start + DefaultEmbeddingBatchSize
		if end > len(slices) {
			end = len(slices)
		}
		batch := slices[start:end]

		vectors, err := s.embedder.BatchEmbed(ctx, batch)
		if err != nil {
			return written, fmt.Errorf("%w: %v", memory.ErrEmbeddingUnavailable, err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
		}

		for i, slice := range batch {
			index := start + i
			if _, err := s.writer.Write(ctx, memory.WriteParams{
				SessionID:  doc.SessionID,
				SourceType: memory.SourceTypeDocument,
				Text:       slice,
				Vector:     vectors[i],
				Model:      s.embedder.Model(),
				DocumentID: mo.Some(doc.ID),
				ChunkIndex: mo.Some(index),
			}); err != nil {
				return written, fmt.Errorf("failed to write chunk %d: %w", index, err)
			}
			written++
		}
	}

	return written, nil
}

// markFailed は書き込み済みチャンクを掃除してドキュメントを error 状態にする。
// 掃除に失敗しても元のエラーを返す（孤児チャンクは後続のカスケード削除で回収可能）。
func (s *IngestService) markFailed(ctx context.Context, doc *memory.Document, cause error) error {
	if err := s.repository.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		s.logger.Warn("failed to clean up chunks of failed document",
			"documentID", doc.ID.String(),
			"error", err,
		)
	}

	if _, err := s.documents.UpdateDocumentStatus(ctx, doc.ID, memory.UpdateStatusParams{
		Status:       memory.DocumentStatusError,
		ErrorMessage: mo.Some(cause.Error()),
	}); err != nil {
		s.logger.Warn("failed to mark document as error",
			"documentID", doc.ID.String(),
			"error", err,
		)
	}

	return cause
}
