package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropushan1/Video-Agent/internal/bootstrap"
	"github.com/dropushan1/Video-Agent/internal/config"
	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/observability/logging"
)

func main() {
	dir := flag.String("dir", "", "source folder to ingest")
	platform := flag.String("platform", "", "platform label for this run (e.g. instagram, youtube)")
	flag.Parse()

	if *dir == "" || *platform == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("video-agent-ingest", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      app.Metrics.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	report, err := app.Pipeline.Run(ctx, *dir, *platform)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			logger.Warn("classifier quota exhausted, run stopped; rerun later to resume",
				"classified", report.Classified, "unresolved", report.Unresolved)
		} else {
			logger.Error("ingest run failed", "error", err)
			printReport(logger, report)
			os.Exit(1)
		}
	}
	printReport(logger, report)
}

func printReport(logger *slog.Logger, report *domain.RunReport) {
	logger.Info("ingest run summary",
		"scanned", report.Scanned,
		"ingested", report.Ingested,
		"resumed", report.Resumed,
		"skipped", report.Skipped,
		"classified", report.Classified,
		"unresolved", report.Unresolved,
		"quota_exhausted", report.QuotaExhausted,
	)
}
