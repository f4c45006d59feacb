package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/dropushan1/Video-Agent/internal/config"
	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/core/ports"
	"github.com/dropushan1/Video-Agent/internal/core/usecase"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/classifier/gemini"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor/assemblyai"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor/ocrspace"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor/pdftext"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor/plaintext"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/extractor/xlsxtext"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/queue/nats"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/registry/csvfile"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/repository/postgres"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/resilience"
	"github.com/dropushan1/Video-Agent/internal/infrastructure/storage/localfs"
	"github.com/dropushan1/Video-Agent/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo     ports.ItemRepository
	Registry ports.VocabularyRegistry
	Metrics  *metrics.PipelineMetrics
	Pipeline ports.PipelineRunner

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewItemRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	registry, err := csvfile.New(cfg.RegistryPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init vocabulary registry: %w", err)
	}

	library, err := localfs.New(cfg.LibraryPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init media library: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	ring, err := gemini.NewKeyRing(cfg.GeminiAPIKeys)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init classifier keys: %w", err)
	}
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.ClassifierRPM)/60.0), 1)
	classifier := gemini.New(cfg.GeminiBaseURL, cfg.GeminiModel, ring, registry, gemini.Options{
		Limiter:  limiter,
		Executor: executor,
	})

	transcriber := assemblyai.New(cfg.AssemblyAIBaseURL, cfg.AssemblyAIAPIKey, assemblyai.Options{})
	ocr := ocrspace.New(cfg.OCRSpaceEndpoint, cfg.OCRSpaceAPIKey, ocrspace.Options{Language: cfg.OCRLanguage})
	texts := extractor.NewRouter(transcriber, ocr, pdftext.New(), xlsxtext.New(), plaintext.New())

	pipelineMetrics := metrics.NewPipelineMetrics("video-agent")

	events := []ports.EventPublisher{pipelineMetrics}
	closeFn := func() { _ = db.Close() }
	if cfg.NATSURL != "" {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = append(events, publisher)
		closeFn = func() {
			publisher.Close()
			_ = db.Close()
		}
	}

	pipeline := usecase.NewIngestPipeline(
		repo,
		registry,
		texts,
		classifier,
		library,
		fanout(events),
		logger,
		cfg.BatchMaxChars,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Repo:     repo,
		Registry: registry,
		Metrics:  pipelineMetrics,
		Pipeline: pipeline,
		closeFn:  closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// fanout delivers each pipeline event to every sink. A failing sink does
// not stop delivery to the others; the first error is returned.
type fanout []ports.EventPublisher

func (f fanout) Publish(ctx context.Context, event domain.PipelineEvent) error {
	var first error
	for _, sink := range f {
		if err := sink.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
