package recall

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
	"github.com/acdc-digital/agent-memory/internal/core/search"
	"github.com/acdc-digital/agent-memory/internal/infra/inmemory"
)

// stubEmbedder はテスト用の決定的 Embedder
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRecallService(repo memory.Repository, embedder search.Embedder) *RecallService {
	searchSvc := search.NewSearchService(repo, embedder, search.WithSearchLogger(discardLogger()))
	return NewRecallService(repo, searchSvc, embedder, WithRecallLogger(discardLogger()))
}

func mustCreateChatChunk(t *testing.T, repo memory.Repository, sessionID, text string, vector []float32) *memory.Chunk {
	t.Helper()
	messageID := "msg-" + uuid.NewString()
	chunk := &memory.Chunk{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SourceType: memory.SourceTypeChat,
		Text:       text,
		Vector:     vector,
		Model:      "test-model",
		MessageID:  &messageID,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, repo.CreateChunk(context.Background(), chunk))
	return chunk
}

func mustCreateDocumentChunk(t *testing.T, repo memory.Repository, sessionID, text string, vector []float32) *memory.Chunk {
	t.Helper()
	docID := uuid.New()
	chunk := &memory.Chunk{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SourceType: memory.SourceTypeDocument,
		Text:       text,
		Vector:     vector,
		Model:      "test-model",
		DocumentID: &docID,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, repo.CreateChunk(context.Background(), chunk))
	return chunk
}

func TestRetrieveContext_FlashWindowKeepsMostRecent(t *testing.T) {
	// Flash ウィンドウは直近 N 件を書き込み順で返す
	ctx := context.Background()
	repo := inmemory.NewRepository()
	for i := 0; i < 12; i++ {
		mustCreateChatChunk(t, repo, "session-a", fmt.Sprintf("message-%d", i), []float32{0, 1})
	}

	svc := newTestRecallService(repo, &stubEmbedder{})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
		MinScore:    mo.Some(0.9), // 意味検索ヒットを排除して Flash だけ観察する
	})
	require.NoError(t, err)
	require.Len(t, result.Fragments, DefaultFlashSize)
	assert.Equal(t, "message-2", result.Fragments[0].Text)
	assert.Equal(t, "message-11", result.Fragments[len(result.Fragments)-1].Text)
	for _, f := range result.Fragments {
		assert.Equal(t, ProvenanceFlash, f.Provenance)
		assert.True(t, f.Score.IsAbsent())
	}
}

func TestRetrieveContext_DeduplicatesFlashWins(t *testing.T) {
	// Flash に含まれるチャンクが意味検索にもヒットした場合、Flash 側だけ残る
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChatChunk(t, repo, "session-a", "recent and relevant", []float32{1, 0})

	svc := newTestRecallService(repo, &stubEmbedder{})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, ProvenanceFlash, result.Fragments[0].Provenance)
	assert.True(t, result.Fragments[0].Score.IsAbsent())
}

func TestRetrieveContext_SemanticChatBeyondFlash(t *testing.T) {
	// Flash から溢れた古い関連チャンクは意味検索で回収される
	ctx := context.Background()
	repo := inmemory.NewRepository()
	relevant := mustCreateChatChunk(t, repo, "session-a", "the database password rotation", []float32{1, 0})
	for i := 0; i < DefaultFlashSize; i++ {
		mustCreateChatChunk(t, repo, "session-a", fmt.Sprintf("filler-%d", i), []float32{0, 1})
	}

	svc := newTestRecallService(repo, &stubEmbedder{})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)

	var semantic *ContextFragment
	for _, f := range result.Fragments {
		if f.Provenance == ProvenanceChatSemantic {
			semantic = f
		}
	}
	require.NotNil(t, semantic)
	assert.Equal(t, relevant.ID, semantic.ChunkID)
	score, ok := semantic.Score.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestRetrieveContext_IncludesGlobalDocuments(t *testing.T) {
	// document チャンクは他セッション由来でもコンテキストに含まれる
	ctx := context.Background()
	repo := inmemory.NewRepository()
	doc := mustCreateDocumentChunk(t, repo, "session-other", "shared handbook", []float32{1, 0})

	svc := newTestRecallService(repo, &stubEmbedder{})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, doc.ID, result.Fragments[0].ChunkID)
	assert.Equal(t, ProvenanceDocumentSemantic, result.Fragments[0].Provenance)
}

func TestRetrieveContext_MinScoreExcludesWeakHits(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateDocumentChunk(t, repo, "session-a", "barely related", []float32{0.1, 1})

	svc := newTestRecallService(repo, &stubEmbedder{})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
		MinScore:    mo.Some(0.8),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Fragments)
	assert.False(t, result.Degraded)
}

func TestRetrieveContext_DegradesOnEmbeddingFailure(t *testing.T) {
	// Embedding 失敗時は Flash のみで Degraded=true。エラーにはしない
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChatChunk(t, repo, "session-a", "recent message", []float32{1, 0})
	mustCreateDocumentChunk(t, repo, "session-a", "relevant doc", []float32{1, 0})

	svc := newTestRecallService(repo, &stubEmbedder{err: fmt.Errorf("api down")})

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID: "session-a",
		Query:     "anything",
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, ProvenanceFlash, result.Fragments[0].Provenance)
}

func TestRetrieveContext_EmbedsQueryWhenVectorAbsent(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateDocumentChunk(t, repo, "session-other", "relevant doc", []float32{1, 0})

	embedder := &stubEmbedder{vectors: map[string][]float32{"find the doc": {1, 0}}}
	svc := newTestRecallService(repo, embedder)

	result, err := svc.RetrieveContext(ctx, RetrieveParams{
		SessionID: "session-a",
		Query:     "find the doc",
	})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, ProvenanceDocumentSemantic, result.Fragments[0].Provenance)
}

func TestRetrieveContext_RequiresSessionID(t *testing.T) {
	svc := newTestRecallService(inmemory.NewRepository(), &stubEmbedder{})

	_, err := svc.RetrieveContext(context.Background(), RetrieveParams{
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.Error(t, err)
}

func TestRetrieveContext_RequiresQueryOrVector(t *testing.T) {
	// クエリもベクトルも無い呼び出しは縮退ではなく使用方法エラー
	svc := newTestRecallService(inmemory.NewRepository(), &stubEmbedder{})

	_, err := svc.RetrieveContext(context.Background(), RetrieveParams{
		SessionID: "session-a",
	})
	require.Error(t, err)
}
