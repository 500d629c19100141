package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/acdc-digital/agent-memory/internal/core/recall"
)

// ContextAction は2段階コンテキスト集約コマンドのアクション
func ContextAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	flashSize := cmd.Int("flash-size")
	topK := cmd.Int("top-k")
	minScore := cmd.Float("min-score")
	showPrompt := cmd.Bool("prompt")
	envFile := cmd.String("env")

	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("クエリを指定してください")
	}

	slog.Info("コンテキスト集約を開始", "session", sessionID, "query", query)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 設定ファイルのチューニング値をデフォルトとして使い、フラグで上書きする
	retrievalCfg := appCtx.Config.Retrieval
	if flashSize <= 0 {
		flashSize = retrievalCfg.FlashWindowSize
	}
	if topK <= 0 {
		topK = retrievalCfg.SemanticTopK
	}
	if minScore <= 0 {
		minScore = retrievalCfg.MinScore
	}

	params := recall.RetrieveParams{
		SessionID: sessionID,
		Query:     query,
		FlashSize: flashSize,
		TopK:      topK,
		MinScore:  mo.Some(minScore),
	}

	result, err := appCtx.Container.RecallService.RetrieveContext(ctx, params)
	if err != nil {
		slog.Error("コンテキスト集約に失敗しました", "error", err)
		return err
	}

	if showPrompt {
		fmt.Println(recall.BuildContextPrompt(query, result))
		return nil
	}

	if result.Degraded {
		fmt.Println("※ 意味検索が利用できないため、直近の会話のみで構成されています")
	}
	if len(result.Fragments) == 0 {
		fmt.Println("コンテキスト断片はありません")
		return nil
	}

	for i, frag := range result.Fragments {
		score := "-"
		if s, ok := frag.Score.Get(); ok {
			score = fmt.Sprintf("%.4f", s)
		}
		fmt.Printf("[%d] %-17s スコア: %s\n", i+1, frag.Provenance, score)
		fmt.Printf("    %s\n", frag.Text)
	}

	slog.Info("コンテキスト集約が完了しました",
		"fragments", len(result.Fragments),
		"degraded", result.Degraded,
	)
	return nil
}
