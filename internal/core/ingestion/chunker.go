package ingestion

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultTargetTokens は1チャンクの目標トークン数
	DefaultTargetTokens = 800
	// DefaultMaxTokens は1チャンクの最大トークン数
	DefaultMaxTokens = 1600
	// DefaultOverlapTokens は長大段落を分割する際のオーバーラップトークン数
	DefaultOverlapTokens = 200
)

// ChunkerConfig はチャンク分割の設定
type ChunkerConfig struct {
	TargetTokens  int
	MaxTokens     int
	OverlapTokens int
}

// DefaultChunkerConfig はデフォルトのチャンク設定を返す
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		TargetTokens:  DefaultTargetTokens,
		MaxTokens:     DefaultMaxTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

// TokenChunker はトークン数を基準にプレーンテキストを分割する。
// 段落（空行区切り）の境界を優先し、目標トークン数まで段落を詰め込む。
// 単独で最大トークン数を超える段落はオーバーラップ付きのトークン窓で分割する。
type TokenChunker struct {
	encoder *tiktoken.Tiktoken
	config  *ChunkerConfig
}

// NewTokenChunker は新しい TokenChunker を作成する。
// cl100k_base エンコーダを使用する（text-embedding-3-small と互換）。
func NewTokenChunker(config *ChunkerConfig) (*TokenChunker, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}
	if config == nil {
		config = DefaultChunkerConfig()
	}
	return &TokenChunker{
		encoder: encoder,
		config:  config,
	}, nil
}

// Split はテキストをチャンク文字列のスライスに分割する。
// 返り値の順序は元テキストの出現順であり、ChunkIndex の採番基準になる。
func (c *TokenChunker) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is empty")
	}

	paragraphs := splitParagraphs(text)

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		tokens := len(c.encoder.Encode(para, nil, nil))

		// 単独で最大を超える段落はトークン窓で強制分割する
		if tokens > c.config.MaxTokens {
			flush()
			chunks = append(chunks, c.splitByTokens(para)...)
			continue
		}

		if currentTokens+tokens > c.config.TargetTokens {
			flush()
		}
		current = append(current, para)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}

// CountTokens はテキストのトークン数を返す
func (c *TokenChunker) CountTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// splitByTokens は段落をオーバーラップ付きのトークン窓で分割する
func (c *TokenChunker) splitByTokens(text string) []string {
	tokens := c.encoder.Encode(text, nil, nil)
	step := c.config.MaxTokens - c.config.OverlapTokens
	if step <= 0 {
		step = c.config.MaxTokens
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.config.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.encoder.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// splitParagraphs は空行区切りで段落に分割する
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
