package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// WriteParams はチャンク書き込みのパラメータを表す
type WriteParams struct {
	SessionID  string
	SourceType SourceType
	Text       string
	Vector     []float32
	Model      string
	MessageID  mo.Option[string]    // chat 由来の場合に必須
	DocumentID mo.Option[uuid.UUID] // document 由来の場合に必須
	ChunkIndex mo.Option[int]       // document 由来のみ
	Metadata   mo.Option[string]
}

// Writer は外部で生成されたベクトルを検証してチャンクとして永続化する。
// Embedding の生成自体は外部コラボレータの責務であり、Writer はリトライを持たない。
type Writer struct {
	repository Repository
	logger     *slog.Logger
}

// WriterOption は Writer のオプション設定
type WriterOption func(*Writer)

// WithWriterLogger は Writer にロガーを設定する
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter は新しい Writer を作成する
func NewWriter(repository Repository, opts ...WriterOption) *Writer {
	w := &Writer{
		repository: repository,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Write はパラメータを検証し、新しいチャンクを永続化して返す
func (w *Writer) Write(ctx context.Context, params WriteParams) (*Chunk, error) {
	if err := validateWriteParams(params); err != nil {
		return nil, err
	}

	chunk := &Chunk{
		ID:         uuid.New(),
		SessionID:  params.SessionID,
		SourceType: params.SourceType,
		Text:       params.Text,
		Vector:     params.Vector,
		Model:      params.Model,
		MessageID:  params.MessageID.ToPointer(),
		DocumentID: params.DocumentID.ToPointer(),
		ChunkIndex: params.ChunkIndex.ToPointer(),
		Metadata:   params.Metadata.ToPointer(),
		CreatedAt:  time.Now(),
	}

	if err := w.repository.CreateChunk(ctx, chunk); err != nil {
		return nil, fmt.Errorf("failed to create chunk: %w", err)
	}

	w.logger.Debug("chunk written",
		"chunkID", chunk.ID.String(),
		"sessionID", chunk.SessionID,
		"sourceType", string(chunk.SourceType),
		"dimension", len(chunk.Vector),
	)

	return chunk, nil
}

// validateWriteParams は書き込みパラメータの検証を行う
func validateWriteParams(params WriteParams) error {
	if params.SessionID == "" {
		return fmt.Errorf("%w: sessionID is required", ErrInvalidChunk)
	}
	if !params.SourceType.IsValid() {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidChunk, params.SourceType)
	}
	if len(params.Vector) == 0 {
		return fmt.Errorf("%w: vector must not be empty", ErrInvalidChunk)
	}
	for i, v := range params.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: vector element %d is not finite", ErrInvalidChunk, i)
		}
	}

	switch params.SourceType {
	case SourceTypeChat:
		if params.MessageID.IsAbsent() {
			return fmt.Errorf("%w: messageID is required for chat chunks", ErrInvalidChunk)
		}
	case SourceTypeDocument:
		if params.DocumentID.IsAbsent() {
			return fmt.Errorf("%w: documentID is required for document chunks", ErrInvalidChunk)
		}
	}

	return nil
}
