package main

import (
	"context"
	"fmt"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/bdougie/pitchside/internal/analyzer"
	"github.com/bdougie/pitchside/internal/config"
	"github.com/bdougie/pitchside/internal/embeddings"
	"github.com/bdougie/pitchside/internal/extractor"
	"github.com/bdougie/pitchside/internal/fetcher"
	"github.com/bdougie/pitchside/internal/storage"
	"github.com/bdougie/pitchside/internal/tracing"
)

// app holds the components wired from configuration.
type app struct {
	processor *analyzer.Processor
	archive   *storage.PostgresStorage
	store     storage.Storage

	embedder *embeddings.Service
	tracer   *sdktrace.TracerProvider
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	if err := a.init(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, cfg *config.Config) error {
	var err error
	a.tracer, err = tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	describer, err := newDescriber(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	captioner, err := analyzer.NewCaptioner(describer, analyzer.CaptionerOptions{
		Language:    cfg.PromptLanguage,
		JPEGQuality: cfg.JPEGQuality,
		TempDir:     cfg.TempDir,
	}, a.logger)
	if err != nil {
		return err
	}

	var stores []storage.Storage
	if cfg.ResultsDir != "" {
		stores = append(stores, storage.NewFileStorage(cfg.ResultsDir, a.logger))
	}
	if cfg.DatabaseURL != "" {
		archive, err := a.openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		stores = append(stores, archive)
	}
	a.store = storage.Multi(stores...)

	a.processor = analyzer.NewProcessor(
		fetcher.NewFetcher(newBackend(cfg, a.logger), cfg.TempDir, a.logger),
		extractor.NewExtractor(cfg.FFmpegPath, cfg.FFprobePath, a.logger),
		captioner,
		a.store,
		a.logger,
	)
	return nil
}

func newDescriber(ctx context.Context, cfg *config.Config, logger *slog.Logger) (analyzer.Describer, error) {
	switch cfg.CaptionProvider {
	case config.ProviderOllama:
		return analyzer.NewOllamaDescriber(ctx, analyzer.OllamaOptions{
			BaseURL: cfg.OllamaBaseURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		}, logger)
	case config.ProviderOpenAI:
		return analyzer.NewOpenAIDescriber(cfg.Credential, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	}
	return nil, fmt.Errorf("unknown caption provider %q", cfg.CaptionProvider)
}

func newBackend(cfg *config.Config, logger *slog.Logger) fetcher.Backend {
	if cfg.FetchBackend == config.BackendNative {
		return fetcher.NewNativeBackend()
	}
	return fetcher.NewYtdlpBackend(cfg.YtdlpFormat, logger)
}

// openArchive connects the Postgres caption archive. Embeddings always use
// the OpenAI-compatible API, so the credential is needed even with Ollama.
func (a *app) openArchive(ctx context.Context, cfg *config.Config) (*storage.PostgresStorage, error) {
	key := cfg.Credential
	if key == "" {
		var err error
		if key, err = config.ReadCredential(cfg.KeyFile); err != nil {
			return nil, fmt.Errorf("caption archive needs an embeddings credential: %w", err)
		}
	}

	a.embedder = embeddings.NewService(
		embeddings.NewOpenAIEmbedder(key, cfg.OpenAIBaseURL, cfg.EmbeddingModel),
		cfg.EmbedWorkers,
	)
	archive, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL, a.embedder, a.logger)
	if err != nil {
		return nil, err
	}
	a.archive = archive
	a.logger.Info("caption archive enabled", slog.String("embedding_model", cfg.EmbeddingModel))
	return archive, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Flush(); err != nil {
			a.logger.Warn("failed to flush results", slog.Any("error", err))
		}
	}
	if a.archive != nil {
		a.archive.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("failed to shut down tracer", slog.Any("error", err))
		}
	}
}
