package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenChunker_EmptyText(t *testing.T) {
	chunker, err := NewTokenChunker(nil)
	require.NoError(t, err)

	_, err = chunker.Split("   \n\n  ")
	require.Error(t, err)
}

func TestTokenChunker_SingleParagraph(t *testing.T) {
	chunker, err := NewTokenChunker(nil)
	require.NoError(t, err)

	chunks, err := chunker.Split("A short paragraph that fits in one chunk.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph that fits in one chunk.", chunks[0])
}

func TestTokenChunker_PacksParagraphsUpToTarget(t *testing.T) {
	// 目標トークン数に収まる段落は1チャンクにまとめられる
	chunker, err := NewTokenChunker(nil)
	require.NoError(t, err)

	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks, err := chunker.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "First paragraph.")
	assert.Contains(t, chunks[0], "Third paragraph.")
}

func TestTokenChunker_SplitsAtTargetBoundary(t *testing.T) {
	// 目標を小さくすると段落ごとに別チャンクになる
	chunker, err := NewTokenChunker(&ChunkerConfig{
		TargetTokens:  4,
		MaxTokens:     100,
		OverlapTokens: 0,
	})
	require.NoError(t, err)

	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks, err := chunker.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph here.", chunks[0])
	assert.Equal(t, "Second paragraph here.", chunks[1])
	assert.Equal(t, "Third paragraph here.", chunks[2])
}

func TestTokenChunker_ForcesSplitOfOversizedParagraph(t *testing.T) {
	// 単独で最大トークン数を超える段落はトークン窓で強制分割される
	chunker, err := NewTokenChunker(&ChunkerConfig{
		TargetTokens:  10,
		MaxTokens:     20,
		OverlapTokens: 5,
	})
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "word%d ", i)
	}

	chunks, err := chunker.Split(sb.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunker.CountTokens(chunk), 20)
	}
}

func TestTokenChunker_PreservesOrder(t *testing.T) {
	// 返り値の順序は元テキストの出現順（ChunkIndex の採番基準）
	chunker, err := NewTokenChunker(&ChunkerConfig{
		TargetTokens:  4,
		MaxTokens:     100,
		OverlapTokens: 0,
	})
	require.NoError(t, err)

	text := "alpha section one.\n\nbravo section two.\n\ncharlie section three."
	chunks, err := chunker.Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0], "alpha")
	assert.Contains(t, chunks[1], "bravo")
	assert.Contains(t, chunks[2], "charlie")
}

func TestTokenChunker_CountTokens(t *testing.T) {
	chunker, err := NewTokenChunker(nil)
	require.NoError(t, err)

	assert.Greater(t, chunker.CountTokens("hello world"), 0)
	assert.Equal(t, 0, chunker.CountTokens(""))
}
