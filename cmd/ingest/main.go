// Command ingest loads the graded essay CSV dataset into Qdrant.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	realai "github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/ai/real"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/observability"
	qdrantcli "github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/config"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/ingest"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	datasetPath := flag.String("dataset", cfg.DatasetPath, "path to the graded essay CSV dataset")
	flag.Parse()

	if cfg.MistralAPIKey == "" {
		slog.Error("MISTRAL_API_KEY is required for ingestion")
		os.Exit(1)
	}

	ctx := context.Background()
	q := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err := q.EnsureCollection(ctx, cfg.EssayCollection, cfg.VectorSize, "Cosine"); err != nil {
		slog.Error("qdrant collection bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	loader := &ingest.Loader{
		Q:          q,
		AI:         realai.New(cfg),
		Collection: cfg.EssayCollection,
		BatchSize:  cfg.IngestBatchSize,
		BatchDelay: cfg.IngestBatchDelay,
	}
	sum, err := loader.LoadCSV(ctx, *datasetPath)
	if err != nil {
		slog.Error("ingestion failed", slog.Any("error", err),
			slog.Int("loaded", sum.Loaded), slog.Int("batches", sum.Batches))
		os.Exit(1)
	}
	slog.Info("ingestion complete",
		slog.Int("total_lines", sum.TotalLines),
		slog.Int("loaded", sum.Loaded),
		slog.Int("skipped", sum.Skipped),
		slog.Int("batches", sum.Batches))
}
