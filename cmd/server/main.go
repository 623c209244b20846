// Command server starts the IELTS essay evaluator HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/ai/real"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/ai/stub"
	httpserver "github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/observability"
	qdrantcli "github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/app"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/config"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/retrieval"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, AI and scoring instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Qdrant client and collection bootstrap (idempotent).
	qcli := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err := qcli.EnsureCollection(ctx, cfg.EssayCollection, cfg.VectorSize, "Cosine"); err != nil {
		slog.Error("qdrant collection bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	// AI client: real Mistral when a key is configured, deterministic stub
	// otherwise (dev only). The stub cannot fail, so readyz carries an "ai"
	// check only on the real path.
	var aicl domain.AIClient
	var aiCheck func(context.Context) error
	if cfg.MistralAPIKey != "" {
		mc := real.New(cfg)
		aicl = mc
		aiCheck = mc.Health
		slog.Info("AI client initialized", slog.String("provider", "mistral"), slog.String("chat_model", cfg.ChatModel))
	} else {
		if !cfg.IsDev() {
			slog.Error("MISTRAL_API_KEY is required outside dev")
			os.Exit(1)
		}
		aicl = stub.New()
		slog.Warn("no Mistral API key configured, using stub AI client")
	}

	rubric, err := usecase.LoadRubricFile(cfg.RubricPath)
	if err != nil {
		slog.Error("rubric load failed", slog.Any("error", err), slog.String("path", cfg.RubricPath))
		os.Exit(1)
	}

	retriever := retrieval.New(aicl, qcli, cfg.EssayCollection)
	evalMetrics := observability.NewEvaluationMetrics()
	scorer := usecase.NewScoreService(retriever, aicl, evalMetrics, rubric,
		cfg.RetrievalTopK, float32(cfg.SimilarityThreshold), cfg.ChatMaxTokens)

	srv := httpserver.NewServer(cfg, scorer, evalMetrics, qcli.Health, aiCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
