package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/acdc-digital/agent-memory/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "agent-memory",
		Usage: "会話エージェント向けハイブリッド意味記憶システム",
		Commands: []*cli.Command{
			{
				Name:  "document",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "ingest",
						Usage: "ドキュメントを取り込んで検索可能にする",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "session",
								Usage:    "セッションID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "取り込むファイルパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "ドキュメント名（省略時はファイル名）",
							},
						},
						Action: appcli.DocumentIngestAction,
					},
					{
						Name:  "list",
						Usage: "セッションのドキュメント一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "session",
								Usage:    "セッションID",
								Required: true,
							},
						},
						Action: appcli.DocumentListAction,
					},
					{
						Name:  "show",
						Usage: "ドキュメント詳細を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: appcli.DocumentShowAction,
					},
					{
						Name:  "delete",
						Usage: "ドキュメントと所有チャンクを削除",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: appcli.DocumentDeleteAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "意味検索コマンド",
				Commands: []*cli.Command{
					{
						Name:      "session",
						Usage:     "セッションスコープで意味検索",
						ArgsUsage: "<query>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "session",
								Usage:    "セッションID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "source",
								Usage: "ソース種別で絞り込み (chat/document)",
							},
							&cli.IntFlag{
								Name:  "top-k",
								Usage: "取得する上位件数",
								Value: 10,
							},
							&cli.FloatFlag{
								Name:  "min-score",
								Usage: "類似度の下限閾値",
							},
						},
						Action: appcli.SearchSessionAction,
					},
					{
						Name:      "docs",
						Usage:     "全セッション横断でドキュメントを意味検索",
						ArgsUsage: "<query>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:  "top-k",
								Usage: "取得する上位件数",
								Value: 10,
							},
							&cli.FloatFlag{
								Name:  "min-score",
								Usage: "類似度の下限閾値",
							},
						},
						Action: appcli.SearchDocsAction,
					},
				},
			},
			{
				Name:      "context",
				Usage:     "エージェントターン向けコンテキストを集約",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "session",
						Usage:    "セッションID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "flash-size",
						Usage: "直近会話ウィンドウのチャンク数（省略時は設定値）",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "意味検索プールごとの取得数（省略時は設定値）",
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "意味検索の類似度閾値（省略時は設定値）",
					},
					&cli.BoolFlag{
						Name:  "prompt",
						Usage: "LLM向けプロンプト形式で出力",
					},
				},
				Action: appcli.ContextAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
