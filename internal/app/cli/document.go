package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/acdc-digital/agent-memory/internal/core/ingestion"
)

// DocumentIngestAction はドキュメントを取り込むコマンドのアクション
func DocumentIngestAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	filePath := cmd.String("file")
	name := cmd.String("name")
	envFile := cmd.String("env")

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	if name == "" {
		name = filepath.Base(filePath)
	}

	slog.Info("ドキュメント取り込みを開始",
		"session", sessionID,
		"file", filePath,
		"name", name,
	)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	fileType := strings.TrimPrefix(filepath.Ext(filePath), ".")
	params := ingestion.IngestParams{
		SessionID: sessionID,
		Name:      name,
		Text:      string(data),
		FileRef:   mo.Some(filePath),
		FileType:  mo.TupleToOption(fileType, fileType != ""),
	}

	result, err := appCtx.Container.IngestService.Ingest(ctx, params)
	if err != nil {
		slog.Error("ドキュメント取り込みに失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメントを取り込みました: %s\n", result.Document.ID)
	fmt.Printf("  名前: %s\n", result.Document.Name)
	fmt.Printf("  チャンク数: %d\n", result.ChunkCount)

	slog.Info("ドキュメント取り込みが完了しました",
		"documentID", result.Document.ID,
		"chunkCount", result.ChunkCount,
	)
	return nil
}

// DocumentListAction はセッションのドキュメント一覧を表示するコマンドのアクション
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Container.DocumentService.ListDocuments(ctx, sessionID)
	if err != nil {
		slog.Error("ドキュメント一覧の取得に失敗しました", "error", err)
		return err
	}

	if len(docs) == 0 {
		fmt.Println("ドキュメントはありません")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %-12s  chunks=%-4d  %s\n",
			doc.ID,
			doc.Status,
			doc.ChunkCount,
			doc.Name,
		)
	}
	return nil
}

// DocumentShowAction はドキュメント詳細を表示するコマンドのアクション
func DocumentShowAction(ctx context.Context, cmd *cli.Command) error {
	idStr := cmd.String("id")
	envFile := cmd.String("env")

	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Container.DocumentService.GetDocument(ctx, id)
	if err != nil {
		slog.Error("ドキュメントの取得に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ID:          %s\n", doc.ID)
	fmt.Printf("セッション:  %s\n", doc.SessionID)
	fmt.Printf("名前:        %s\n", doc.Name)
	fmt.Printf("ステータス:  %s\n", doc.Status)
	fmt.Printf("チャンク数:  %d\n", doc.ChunkCount)
	fmt.Printf("アップロード: %s\n", doc.UploadedAt.Format("2006-01-02 15:04:05"))
	if doc.ProcessedAt != nil {
		fmt.Printf("処理完了:    %s\n", doc.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.ErrorMessage != nil {
		fmt.Printf("エラー:      %s\n", *doc.ErrorMessage)
	}
	return nil
}

// DocumentDeleteAction はドキュメントと所有チャンクを削除するコマンドのアクション
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	idStr := cmd.String("id")
	envFile := cmd.String("env")

	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.DocumentService.DeleteDocument(ctx, id); err != nil {
		slog.Error("ドキュメントの削除に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメントを削除しました: %s\n", id)
	return nil
}
