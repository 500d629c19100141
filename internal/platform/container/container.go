package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acdc-digital/agent-memory/internal/core/ingestion"
	"github.com/acdc-digital/agent-memory/internal/core/memory"
	"github.com/acdc-digital/agent-memory/internal/core/recall"
	"github.com/acdc-digital/agent-memory/internal/core/search"
	"github.com/acdc-digital/agent-memory/internal/infra/inmemory"
	"github.com/acdc-digital/agent-memory/internal/infra/openai"
	"github.com/acdc-digital/agent-memory/internal/infra/postgres"
	"github.com/acdc-digital/agent-memory/internal/platform/config"
	"github.com/acdc-digital/agent-memory/internal/platform/database"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
// コンポーネントはここで一度だけ構築され、必要とする側へ明示的に注入される。
// モジュールレベルのシングルトンは持たず、ライフサイクルはプロセスの
// エントリポイントが所有する。
type ServiceContainer struct {
	Repository      memory.Repository
	Writer          *memory.Writer
	DocumentService *memory.DocumentService
	SearchService   *search.SearchService
	RecallService   *recall.RecallService
	IngestService   *ingestion.IngestService

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger     *slog.Logger
	repository memory.Repository
	embedder   ingestion.Embedder
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerRepository はリポジトリを差し替える（テスト用）
func WithContainerRepository(repository memory.Repository) ContainerOption {
	return func(opts *containerOptions) {
		opts.repository = repository
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder ingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	// ストアバックエンドの選択
	repository := options.repository
	var db *database.Database
	if repository == nil {
		switch cfg.StoreBackend {
		case "memory":
			repository = inmemory.NewRepository()
		case "postgres":
			var err error
			db, err = database.New(ctx, database.ConnectionParams{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				DBName:   cfg.Database.DBName,
				SSLMode:  cfg.Database.SSLMode,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", memory.ErrStoreUnavailable, err)
			}
			repository = postgres.NewRepository(db.Pool)
		default:
			return nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
		}
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	chunker, err := ingestion.NewTokenChunker(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	writer := memory.NewWriter(repository, memory.WithWriterLogger(logger))
	documentService := memory.NewDocumentService(repository, memory.WithDocumentLogger(logger))
	searchService := search.NewSearchService(repository, embedder, search.WithSearchLogger(logger))
	recallService := recall.NewRecallService(repository, searchService, embedder, recall.WithRecallLogger(logger))
	ingestService := ingestion.NewIngestService(
		repository,
		documentService,
		writer,
		embedder,
		chunker,
		ingestion.WithIngestLogger(logger),
	)

	return &ServiceContainer{
		Repository:      repository,
		Writer:          writer,
		DocumentService: documentService,
		SearchService:   searchService,
		RecallService:   recallService,
		IngestService:   ingestService,
		logger:          logger,
		database:        db,
	}, nil
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close はコンテナが保持するリソースを解放する
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}
