package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// CreateDocumentParams はドキュメント作成のパラメータを表す
type CreateDocumentParams struct {
	SessionID string
	Name      string
	FileRef   mo.Option[string]
	FileType  mo.Option[string]
	FileSize  int64
}

// UpdateStatusParams はドキュメント状態更新のパラメータを表す
type UpdateStatusParams struct {
	Status       DocumentStatus
	ChunkCount   mo.Option[int]    // ready 遷移時に設定
	ErrorMessage mo.Option[string] // error 遷移時に設定
}

// DocumentService はドキュメントのライフサイクル管理ユースケースを提供する
type DocumentService struct {
	repository Repository
	logger     *slog.Logger
}

// DocumentServiceOption は DocumentService のオプション設定
type DocumentServiceOption func(*DocumentService)

// WithDocumentLogger は DocumentService にロガーを設定する
func WithDocumentLogger(logger *slog.Logger) DocumentServiceOption {
	return func(s *DocumentService) {
		s.logger = logger
	}
}

// NewDocumentService は新しい DocumentService を作成する
func NewDocumentService(repository Repository, opts ...DocumentServiceOption) *DocumentService {
	svc := &DocumentService{
		repository: repository,
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

// CreateDocument は uploading 状態の新しいドキュメントを作成する
func (s *DocumentService) CreateDocument(ctx context.Context, params CreateDocumentParams) (*Document, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	if params.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	doc := &Document{
		ID:         uuid.New(),
		SessionID:  params.SessionID,
		Name:       params.Name,
		FileRef:    params.FileRef.ToPointer(),
		FileType:   params.FileType.ToPointer(),
		FileSize:   params.FileSize,
		Status:     DocumentStatusUploading,
		UploadedAt: time.Now(),
	}

	if err := s.repository.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Info("document created",
		"documentID", doc.ID.String(),
		"sessionID", doc.SessionID,
		"name", doc.Name,
	)

	return doc, nil
}

// GetDocument は ID でドキュメントを取得する。存在しない場合は ErrDocumentNotFound。
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	opt, err := s.repository.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc, ok := opt.Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// ListDocuments はセッション内のドキュメント一覧を返す
func (s *DocumentService) ListDocuments(ctx context.Context, sessionID string) ([]*Document, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	docs, err := s.repository.ListDocumentsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// UpdateDocumentStatus はドキュメントの状態遷移を実行する。
// uploading → processing → {ready, error} 以外の遷移は拒否する。
func (s *DocumentService) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, params UpdateStatusParams) (*Document, error) {
	if !params.Status.IsValid() {
		return nil, fmt.Errorf("unknown document status: %q", params.Status)
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	if !doc.Status.CanTransitionTo(params.Status) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidStatusTransition, doc.Status, params.Status)
	}

	doc.Status = params.Status
	if count, ok := params.ChunkCount.Get(); ok {
		doc.ChunkCount = count
	}
	doc.ErrorMessage = params.ErrorMessage.ToPointer()
	if params.Status.IsTerminal() {
		now := time.Now()
		doc.ProcessedAt = &now
	}

	if err := s.repository.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	s.logger.Info("document status updated",
		"documentID", doc.ID.String(),
		"status", string(doc.Status),
		"chunkCount", doc.ChunkCount,
	)

	return doc, nil
}

// DeleteDocument はドキュメントと所有チャンクをカスケード削除する。
// 存在しない ID に対しては冪等な no-op。
func (s *DocumentService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.repository.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("document deleted", "documentID", id.String())
	return nil
}

// GetChunksByDocument はドキュメント所有チャンクを chunkIndex 昇順で返す
func (s *DocumentService) GetChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*Chunk, error) {
	chunks, err := s.repository.ListChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks by document: %w", err)
	}
	return chunks, nil
}
