package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// Embedder はテキストの Embedding 生成インターフェース
type Embedder interface {
	// Embed は単一テキストの Embedding を生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService はスコープ付きベクトル検索のビジネスロジックを提供する。
//
// 2つの候補宇宙を持つ:
//   - セッションスコープ: そのセッションのチャンクのみ（chat 記憶はセッション私有）
//   - グローバルドキュメント: 全セッションの document チャンク（共有コーパス）
//
// この非対称性は設計判断であり、会話はデフォルトで私有、
// アップロードされたドキュメントは共有知識として扱う。
type SearchService struct {
	repository memory.Repository
	embedder   Embedder
	logger     *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*SearchService)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しい SearchService を作成する
func NewSearchService(repository memory.Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		repository: repository,
		embedder:   embedder,
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

// SearchSession はセッションスコープでベクトル検索を実行する
func (s *SearchService) SearchSession(ctx context.Context, params SessionSearchParams) ([]*RankedChunk, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}

	queryVector, err := s.resolveQueryVector(ctx, params.Query, params.QueryVector.OrEmpty())
	if err != nil {
		return nil, err
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	candidates, err := s.repository.ListChunksBySession(ctx, params.SessionID, params.SourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to list session chunks: %w", err)
	}

	results, err := Rank(queryVector, candidates, topK, params.MinScore)
	if err != nil {
		return nil, fmt.Errorf("session search failed: %w", err)
	}

	s.logger.Debug("session search completed",
		"sessionID", params.SessionID,
		"candidates", len(candidates),
		"results", len(results),
	)

	return results, nil
}

// SearchGlobalDocuments は全セッション横断で document チャンクを検索する。
// sessionID を無視するのは意図的であり、ドキュメント知識の共有設計による。
func (s *SearchService) SearchGlobalDocuments(ctx context.Context, params GlobalSearchParams) ([]*RankedChunk, error) {
	queryVector, err := s.resolveQueryVector(ctx, params.Query, params.QueryVector.OrEmpty())
	if err != nil {
		return nil, err
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	candidates, err := s.repository.ListAllDocumentChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list document chunks: %w", err)
	}

	results, err := Rank(queryVector, candidates, topK, params.MinScore)
	if err != nil {
		return nil, fmt.Errorf("global document search failed: %w", err)
	}

	s.logger.Debug("global document search completed",
		"candidates", len(candidates),
		"results", len(results),
	)

	return results, nil
}

// resolveQueryVector は事前計算済みベクトルを優先し、なければクエリ文を Embedding する
func (s *SearchService) resolveQueryVector(ctx context.Context, query string, queryVector []float32) ([]float32, error) {
	if len(queryVector) > 0 {
		return queryVector, nil
	}
	if query == "" {
		return nil, fmt.Errorf("query or queryVector is required")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbeddingUnavailable, err)
	}
	return vector, nil
}
