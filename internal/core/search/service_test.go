package search

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

func mustCreateChunk(t *testing.T, repo memory.Repository, sessionID string, sourceType memory.SourceType, text string, vector []float32) *memory.Chunk {
	t.Helper()
	messageID := "msg-" + uuid.NewString()
	chunk := &memory.Chunk{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SourceType: sourceType,
		Text:       text,
		Vector:     vector,
		Model:      "test-model",
		CreatedAt:  time.Now(),
	}
	if sourceType == memory.SourceTypeChat {
		chunk.MessageID = &messageID
	} else {
		docID := uuid.New()
		chunk.DocumentID = &docID
	}
	require.NoError(t, repo.CreateChunk(context.Background(), chunk))
	return chunk
}

func TestSearchSession_SessionIsolation(t *testing.T) {
	// chat 記憶はセッション私有。他セッションのチャンクは候補に入らない
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeChat, "a-1", []float32{1, 0})
	mustCreateChunk(t, repo, "session-b", memory.SourceTypeChat, "b-1", []float32{1, 0})

	svc := NewSearchService(repo, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	results, err := svc.SearchSession(ctx, SessionSearchParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a-1", results[0].Text)
	assert.Equal(t, "session-a", results[0].SessionID)
}

func TestSearchSession_SourceTypeFilter(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeChat, "chat-1", []float32{1, 0})
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeDocument, "doc-1", []float32{1, 0})

	svc := NewSearchService(repo, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	results, err := svc.SearchSession(ctx, SessionSearchParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
		SourceType:  mo.Some(memory.SourceTypeChat),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chat-1", results[0].Text)

	// フィルタ未指定なら両方の由来が候補になる
	results, err = svc.SearchSession(ctx, SessionSearchParams{
		SessionID:   "session-a",
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchSession_EmbedsQueryWhenVectorAbsent(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeChat, "hello", []float32{1, 0})

	embedder := &stubEmbedder{vectors: map[string][]float32{"greeting": {1, 0}}}
	svc := NewSearchService(repo, embedder, WithSearchLogger(discardLogger()))

	results, err := svc.SearchSession(ctx, SessionSearchParams{
		SessionID: "session-a",
		Query:     "greeting",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearchSession_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()

	embedder := &stubEmbedder{err: fmt.Errorf("api down")}
	svc := NewSearchService(repo, embedder, WithSearchLogger(discardLogger()))

	_, err := svc.SearchSession(ctx, SessionSearchParams{
		SessionID: "session-a",
		Query:     "anything",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrEmbeddingUnavailable)
}

func TestSearchSession_RequiresSessionID(t *testing.T) {
	svc := NewSearchService(inmemory.NewRepository(), &stubEmbedder{}, WithSearchLogger(discardLogger()))

	_, err := svc.SearchSession(context.Background(), SessionSearchParams{
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.Error(t, err)
}

func TestSearchGlobalDocuments_CrossSessionVisibility(t *testing.T) {
	// document チャンクはセッションをまたいで共有される
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeDocument, "doc-a", []float32{1, 0})
	mustCreateChunk(t, repo, "session-b", memory.SourceTypeDocument, "doc-b", []float32{1, 0})
	mustCreateChunk(t, repo, "session-a", memory.SourceTypeChat, "chat-a", []float32{1, 0})

	svc := NewSearchService(repo, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	results, err := svc.SearchGlobalDocuments(ctx, GlobalSearchParams{
		QueryVector: mo.Some([]float32{1, 0}),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, memory.SourceTypeDocument, r.SourceType)
	}
}

func TestSearchGlobalDocuments_TopKAndMinScore(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	mustCreateChunk(t, repo, "s", memory.SourceTypeDocument, "exact", []float32{1, 0})
	mustCreateChunk(t, repo, "s", memory.SourceTypeDocument, "close", []float32{1, 1})
	mustCreateChunk(t, repo, "s", memory.SourceTypeDocument, "orthogonal", []float32{0, 1})

	svc := NewSearchService(repo, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	results, err := svc.SearchGlobalDocuments(ctx, GlobalSearchParams{
		QueryVector: mo.Some([]float32{1, 0}),
		TopK:        2,
		MinScore:    mo.Some(0.5),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Text)
	assert.Equal(t, "close", results[1].Text)
}

func TestSearchGlobalDocuments_RequiresQueryOrVector(t *testing.T) {
	svc := NewSearchService(inmemory.NewRepository(), &stubEmbedder{}, WithSearchLogger(discardLogger()))

	_, err := svc.SearchGlobalDocuments(context.Background(), GlobalSearchParams{})
	require.Error(t, err)
}
