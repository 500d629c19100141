package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

func newChunk(sessionID string, sourceType memory.SourceType, text string) *memory.Chunk {
	chunk := &memory.Chunk{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SourceType: sourceType,
		Text:       text,
		Vector:     []float32{1, 0},
		Model:      "test-model",
		CreatedAt:  time.Now(),
	}
	if sourceType == memory.SourceTypeChat {
		messageID := "msg-" + uuid.NewString()
		chunk.MessageID = &messageID
	}
	return chunk
}

func TestListChunksBySession_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateChunk(ctx, newChunk("session-a", memory.SourceTypeChat, fmt.Sprintf("m-%d", i))))
	}

	chunks, err := repo.ListChunksBySession(ctx, "session-a", mo.None[memory.SourceType]())
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	for i, c := range chunks {
		assert.Equal(t, fmt.Sprintf("m-%d", i), c.Text)
	}
}

func TestListChunksBySession_SourceTypeFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	require.NoError(t, repo.CreateChunk(ctx, newChunk("session-a", memory.SourceTypeChat, "chat")))
	docChunk := newChunk("session-a", memory.SourceTypeDocument, "doc")
	docID := uuid.New()
	docChunk.DocumentID = &docID
	require.NoError(t, repo.CreateChunk(ctx, docChunk))

	chunks, err := repo.ListChunksBySession(ctx, "session-a", mo.Some(memory.SourceTypeDocument))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc", chunks[0].Text)
}

func TestListChunksByDocument_ChunkIndexOrder(t *testing.T) {
	// chunkIndex 昇順、nil は末尾
	ctx := context.Background()
	repo := NewRepository()
	docID := uuid.New()

	indexes := []*int{intPtr(2), nil, intPtr(0), intPtr(1)}
	for i, idx := range indexes {
		chunk := newChunk("session-a", memory.SourceTypeDocument, fmt.Sprintf("c-%d", i))
		chunk.DocumentID = &docID
		chunk.ChunkIndex = idx
		require.NoError(t, repo.CreateChunk(ctx, chunk))
	}

	chunks, err := repo.ListChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, 0, *chunks[0].ChunkIndex)
	assert.Equal(t, 1, *chunks[1].ChunkIndex)
	assert.Equal(t, 2, *chunks[2].ChunkIndex)
	assert.Nil(t, chunks[3].ChunkIndex)
}

func TestDeleteChunk_MissingIsNoop(t *testing.T) {
	repo := NewRepository()
	assert.NoError(t, repo.DeleteChunk(context.Background(), uuid.New()))
}

func TestCreateChunk_CopiesInput(t *testing.T) {
	// 呼び出し元が構造体を書き換えてもストア内の値は変わらない
	ctx := context.Background()
	repo := NewRepository()

	chunk := newChunk("session-a", memory.SourceTypeChat, "original")
	require.NoError(t, repo.CreateChunk(ctx, chunk))
	chunk.Text = "mutated"

	chunks, err := repo.ListChunksBySession(ctx, "session-a", mo.None[memory.SourceType]())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "original", chunks[0].Text)
}

func TestDocumentCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	doc := &memory.Document{
		ID:         uuid.New(),
		SessionID:  "session-a",
		Name:       "handbook.md",
		Status:     memory.DocumentStatusUploading,
		UploadedAt: time.Now(),
	}
	require.NoError(t, repo.CreateDocument(ctx, doc))

	opt, err := repo.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	got, ok := opt.Get()
	require.True(t, ok)
	assert.Equal(t, "handbook.md", got.Name)

	got.Status = memory.DocumentStatusProcessing
	require.NoError(t, repo.UpdateDocument(ctx, got))

	opt, err = repo.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	updated, ok := opt.Get()
	require.True(t, ok)
	assert.Equal(t, memory.DocumentStatusProcessing, updated.Status)
}

func TestGetDocumentByID_Missing(t *testing.T) {
	repo := NewRepository()

	opt, err := repo.GetDocumentByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, opt.IsAbsent())
}

func TestUpdateDocument_Missing(t *testing.T) {
	repo := NewRepository()

	err := repo.UpdateDocument(context.Background(), &memory.Document{ID: uuid.New()})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrDocumentNotFound)
}

func TestDeleteDocument_CascadesChunks(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	docID := uuid.New()

	require.NoError(t, repo.CreateDocument(ctx, &memory.Document{
		ID:        docID,
		SessionID: "session-a",
		Name:      "handbook.md",
		Status:    memory.DocumentStatusReady,
	}))
	for i := 0; i < 3; i++ {
		chunk := newChunk("session-a", memory.SourceTypeDocument, fmt.Sprintf("c-%d", i))
		chunk.DocumentID = &docID
		chunk.ChunkIndex = intPtr(i)
		require.NoError(t, repo.CreateChunk(ctx, chunk))
	}
	// 無関係なチャンクは残ること
	require.NoError(t, repo.CreateChunk(ctx, newChunk("session-a", memory.SourceTypeChat, "keep")))

	require.NoError(t, repo.DeleteDocument(ctx, docID))

	opt, err := repo.GetDocumentByID(ctx, docID)
	require.NoError(t, err)
	assert.True(t, opt.IsAbsent())

	chunks, err := repo.ListChunksByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	remaining, err := repo.ListChunksBySession(ctx, "session-a", mo.None[memory.SourceType]())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "keep", remaining[0].Text)
}

func TestDeleteDocument_MissingIsNoop(t *testing.T) {
	repo := NewRepository()
	assert.NoError(t, repo.DeleteDocument(context.Background(), uuid.New()))
}

func TestConcurrentWrites(t *testing.T) {
	// 並行書き込みでもチャンクを失わない
	ctx := context.Background()
	repo := NewRepository()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = repo.CreateChunk(ctx, newChunk("session-a", memory.SourceTypeChat, fmt.Sprintf("m-%d", n)))
		}(i)
	}
	wg.Wait()

	chunks, err := repo.ListChunksBySession(ctx, "session-a", mo.None[memory.SourceType]())
	require.NoError(t, err)
	assert.Len(t, chunks, 20)
}

func intPtr(v int) *int {
	return &v
}
