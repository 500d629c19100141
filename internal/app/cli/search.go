package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/acdc-digital/agent-memory/internal/core/memory"
	"github.com/acdc-digital/agent-memory/internal/core/search"
)

// SearchSessionAction はセッションスコープの意味検索コマンドのアクション
func SearchSessionAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	sourceType := cmd.String("source")
	topK := cmd.Int("top-k")
	minScore := cmd.Float("min-score")
	envFile := cmd.String("env")

	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	sourceFilter := mo.None[memory.SourceType]()
	if sourceType != "" {
		st := memory.SourceType(sourceType)
		if !st.IsValid() {
			return fmt.Errorf("不正なソース種別: %q (chat/document)", sourceType)
		}
		sourceFilter = mo.Some(st)
	}

	slog.Info("セッション検索を開始", "session", sessionID, "query", query)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	params := search.SessionSearchParams{
		SessionID:  sessionID,
		Query:      query,
		SourceType: sourceFilter,
		TopK:       topK,
	}
	if minScore > 0 {
		params.MinScore = mo.Some(minScore)
	}

	results, err := appCtx.Container.SearchService.SearchSession(ctx, params)
	if err != nil {
		slog.Error("セッション検索に失敗しました", "error", err)
		return err
	}

	printRankedChunks(results)
	return nil
}

// SearchDocsAction は全セッション横断のドキュメント検索コマンドのアクション
func SearchDocsAction(ctx context.Context, cmd *cli.Command) error {
	topK := cmd.Int("top-k")
	minScore := cmd.Float("min-score")
	envFile := cmd.String("env")

	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	slog.Info("ドキュメント検索を開始", "query", query)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	params := search.GlobalSearchParams{
		Query: query,
		TopK:  topK,
	}
	if minScore > 0 {
		params.MinScore = mo.Some(minScore)
	}

	results, err := appCtx.Container.SearchService.SearchGlobalDocuments(ctx, params)
	if err != nil {
		slog.Error("ドキュメント検索に失敗しました", "error", err)
		return err
	}

	printRankedChunks(results)
	return nil
}

// printRankedChunks は検索結果をスコア付きで出力する
func printRankedChunks(results []*search.RankedChunk) {
	if len(results) == 0 {
		fmt.Println("該当するチャンクはありません")
		return
	}

	for i, r := range results {
		fmt.Printf("[%d] スコア: %.4f  (%s, session=%s)\n", i+1, r.Score, r.SourceType, r.SessionID)
		fmt.Printf("    %s\n", r.Text)
	}
}
