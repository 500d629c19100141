package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/mo"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
)

// Cosine は2つのベクトルのコサイン類似度を返す。
// どちらかのノルムがゼロの場合は「類似度なし」として 0 を返す（ゼロ除算回避）。
// 次元数が一致しない場合は ErrDimensionMismatch。
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", memory.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank はクエリベクトルに対して候補チャンクを類似度降順に並べる。
//
//   - 同点は元の候補順を維持する（安定ソート）ため、同一入力に対して決定的
//   - minScore 指定時はスコアが閾値を厳密に下回る候補を除外する
//   - topK は除外後の結果を最大 topK 件に切り詰める
//
// いずれかの候補とクエリの次元が一致しない場合、その候補をスキップせず
// 呼び出し全体を ErrDimensionMismatch で失敗させる。
// 全候補を線形走査する O(n·d) の厳密検索であり、近似インデックスは導入しない。
func Rank(query []float32, candidates []*memory.Chunk, topK int, minScore mo.Option[float64]) ([]*RankedChunk, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector must not be empty", memory.ErrInvalidChunk)
	}

	ranked := make([]*RankedChunk, 0, len(candidates))
	for _, c := range candidates {
		score, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		ranked = append(ranked, &RankedChunk{
			ChunkID:    c.ID,
			SessionID:  c.SessionID,
			SourceType: c.SourceType,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Score:      score,
			CreatedAt:  c.CreatedAt,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if threshold, ok := minScore.Get(); ok {
		filtered := ranked[:0]
		for _, r := range ranked {
			if r.Score >= threshold {
				filtered = append(filtered, r)
			}
		}
		ranked = filtered
	}

	if topK >= 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return ranked, nil
}
