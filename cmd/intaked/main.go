package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/intake-router/internal/classify"
	"github.com/joseph-ayodele/intake-router/internal/common"
	"github.com/joseph-ayodele/intake-router/internal/export"
	"github.com/joseph-ayodele/intake-router/internal/extract"
	"github.com/joseph-ayodele/intake-router/internal/ingest"
	"github.com/joseph-ayodele/intake-router/internal/llm"
	"github.com/joseph-ayodele/intake-router/internal/memory"
	"github.com/joseph-ayodele/intake-router/internal/orchestrator"
	"github.com/joseph-ayodele/intake-router/internal/pdftext"
	"github.com/joseph-ayodele/intake-router/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := memory.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Error("failed to open conversation store", "error", err, "dsn", cfg.Database.DSN)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing conversation store", "error", err)
		}
	}()

	gateway, err := llm.NewGateway(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryBaseDelay: cfg.LLM.RetryBaseDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to build completion gateway", "error", err)
		os.Exit(2)
	}

	pdf := pdftext.NewExtractor(logger)
	classifier := classify.New(gateway, pdf, logger)

	email := extract.NewEmail(gateway, store, logger)
	jsonPayload := extract.NewJSONPayload(gateway, store, logger)
	pdfExtractor := extract.NewPDF(pdf, classifier, email, logger)

	processor := orchestrator.New(classifier, store, pdf, email, jsonPayload, pdfExtractor, logger)
	exporter := export.NewService(store, logger)

	if len(cfg.Watch.Dirs) > 0 {
		ingestor := ingest.New(processor, logger)
		go func() {
			logger.Info("ingest watching", "dirs", cfg.Watch.Dirs)
			err := ingestor.Watch(ctx, ingest.WatchConfig{
				Roots:       cfg.Watch.Dirs,
				InitialScan: true,
				Debounce:    cfg.Watch.Debounce,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingest watch", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(processor, exporter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}
