package recall

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
	"github.com/acdc-digital/agent-memory/internal/core/search"
)

// RecallService は2段構成のコンテキスト集約を提供する。
//
// Stage 1（Flash ウィンドウ）: セッションの直近 N 件の chat チャンクを
// スコアに依らず時系列で取得する。意味検索が空振りしても会話の連続性を保証する。
//
// Stage 2（意味検索）: クエリ Embedding を用いてセッション内 chat 検索と
// グローバルドキュメント検索を実行し、閾値・topK を適用する。
//
// マージは chunkID で重複排除し、Stage 1 を優先する（直近性により関連が保証済み）。
// ターン間で状態を持たず、毎回チャンクストアから読み直す。
type RecallService struct {
	repository    memory.Repository
	searchService *search.SearchService
	embedder      search.Embedder
	logger        *slog.Logger
}

// RecallServiceOption は RecallService のオプション設定
type RecallServiceOption func(*RecallService)

// WithRecallLogger は RecallService にロガーを設定する
func WithRecallLogger(logger *slog.Logger) RecallServiceOption {
	return func(s *RecallService) {
		s.logger = logger
	}
}

// NewRecallService は新しい RecallService を作成する
func NewRecallService(
	repository memory.Repository,
	searchService *search.SearchService,
	embedder search.Embedder,
	opts ...RecallServiceOption,
) *RecallService {
	svc := &RecallService{
		repository:    repository,
		searchService: searchService,
		embedder:      embedder,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// RetrieveContext はエージェントターン向けの有界コンテキストを組み立てる。
//
// クエリ Embedding の失敗は Stage 1 のみへの縮退で回復する（Degraded フラグ付き）。
// チャンクストアの失敗は致命的として伝播する。欠けた記憶を完全なものとして
// 黙って返すより、呼び出し元に失敗を知らせる方が安全なため。
func (s *RecallService) RetrieveContext(ctx context.Context, params RetrieveParams) (*ContextResult, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	if params.Query == "" && params.QueryVector.IsAbsent() {
		return nil, fmt.Errorf("query or queryVector is required")
	}

	flashSize := params.FlashSize
	if flashSize <= 0 {
		flashSize = DefaultFlashSize
	}
	topK := params.TopK
	if topK <= 0 {
		topK = DefaultSemanticTopK
	}
	minScore := params.MinScore.OrElse(DefaultMinScore)

	// Stage 1: Flash ウィンドウ
	flash, err := s.flashWindow(ctx, params.SessionID, flashSize)
	if err != nil {
		return nil, err
	}

	// クエリベクトルの解決。失敗時は Stage 2 をスキップして縮退する。
	queryVector, ok := params.QueryVector.Get()
	if !ok {
		queryVector, err = s.embedQuery(ctx, params.Query)
		if err != nil {
			s.logger.Warn("query embedding failed, degrading to flash window only",
				"sessionID", params.SessionID,
				"error", err,
			)
			return &ContextResult{Fragments: flash, Degraded: true}, nil
		}
	}

	// Stage 2: 意味検索（セッション内 chat + グローバルドキュメント）
	chatHits, err := s.searchService.SearchSession(ctx, search.SessionSearchParams{
		SessionID:   params.SessionID,
		QueryVector: mo.Some(queryVector),
		SourceType:  mo.Some(memory.SourceTypeChat),
		TopK:        topK,
		MinScore:    mo.Some(minScore),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic chat search failed: %w", err)
	}

	docHits, err := s.searchService.SearchGlobalDocuments(ctx, search.GlobalSearchParams{
		QueryVector: mo.Some(queryVector),
		TopK:        topK,
		MinScore:    mo.Some(minScore),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic document search failed: %w", err)
	}

	// マージ: Flash（時系列） + chat 意味検索 + ドキュメント意味検索
	seen := make(map[string]struct{}, len(flash))
	fragments := make([]*ContextFragment, 0, len(flash)+len(chatHits)+len(docHits))
	for _, f := range flash {
		seen[f.ChunkID.String()] = struct{}{}
		fragments = append(fragments, f)
	}
	fragments = appendHits(fragments, seen, chatHits, ProvenanceChatSemantic)
	fragments = appendHits(fragments, seen, docHits, ProvenanceDocumentSemantic)

	s.logger.Info("context assembled",
		"sessionID", params.SessionID,
		"flash", len(flash),
		"chatHits", len(chatHits),
		"documentHits", len(docHits),
		"fragments", len(fragments),
	)

	return &ContextResult{Fragments: fragments}, nil
}

// flashWindow はセッションの直近 chat チャンクを時系列で返す
func (s *RecallService) flashWindow(ctx context.Context, sessionID string, size int) ([]*ContextFragment, error) {
	chunks, err := s.repository.ListChunksBySession(ctx, sessionID, mo.Some(memory.SourceTypeChat))
	if err != nil {
		return nil, fmt.Errorf("failed to load flash window: %w", err)
	}

	// 挿入順のまま末尾 size 件を採用する
	if len(chunks) > size {
		chunks = chunks[len(chunks)-size:]
	}

	fragments := make([]*ContextFragment, 0, len(chunks))
	for _, c := range chunks {
		fragments = append(fragments, &ContextFragment{
			ChunkID:    c.ID,
			SessionID:  c.SessionID,
			SourceType: c.SourceType,
			Provenance: ProvenanceFlash,
			Text:       c.Text,
			Score:      mo.None[float64](),
			CreatedAt:  c.CreatedAt,
		})
	}
	return fragments, nil
}

// embedQuery はクエリ文をベクトル化する。失敗は ErrEmbeddingUnavailable として返す。
func (s *RecallService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbeddingUnavailable, err)
	}
	return vector, nil
}

// appendHits は重複排除しながら検索ヒットを断片リストへ追加する
func appendHits(fragments []*ContextFragment, seen map[string]struct{}, hits []*search.RankedChunk, provenance Provenance) []*ContextFragment {
	for _, h := range hits {
		key := h.ChunkID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fragments = append(fragments, &ContextFragment{
			ChunkID:    h.ChunkID,
			SessionID:  h.SessionID,
			SourceType: h.SourceType,
			Provenance: provenance,
			Text:       h.Text,
			Score:      mo.Some(h.Score),
			CreatedAt:  h.CreatedAt,
		})
	}
	return fragments
}
