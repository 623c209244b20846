// Package ingest loads the graded essay dataset into the vector store.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
	"github.com/fairyhunter13/ielts-essay-evaluator/pkg/textx"
)

// Expected CSV columns, in order.
const (
	colTaskType = iota
	colQuestion
	colEssay
	colExaminerComment
	colTRScore
	colCCScore
	colLRScore
	colGRAScore
	colOverallScore
	minColumns = colOverallScore + 1
)

// pointNamespace makes dataset point IDs deterministic: re-running
// ingestion overwrites rows instead of duplicating them.
var pointNamespace = uuid.MustParse("c2f1a6de-8a40-4f2d-9b6b-2b1d54c7a9e3")

// Document is one graded essay prepared for embedding.
type Document struct {
	Content    string
	Metadata   map[string]any
	SourceLine int
}

// Summary reports what an ingestion run did.
type Summary struct {
	TotalLines int
	Loaded     int
	Skipped    int
	Batches    int
}

// Loader reads Writing Task 2 rows from CSV, embeds them in batches and
// upserts them into Qdrant, snapshotting the collection after every batch.
type Loader struct {
	Q          *qdrant.Client
	AI         domain.AIClient
	Collection string
	BatchSize  int
	BatchDelay time.Duration
}

// LoadCSV ingests the dataset at path. Invalid rows are skipped and
// counted; a dataset yielding no valid rows is an error.
func (l *Loader) LoadCSV(ctx domain.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	docs, sum, err := parseRecords(f)
	if err != nil {
		return sum, err
	}
	slog.Info("dataset parsed",
		slog.Int("total_lines", sum.TotalLines),
		slog.Int("loaded", sum.Loaded),
		slog.Int("skipped", sum.Skipped))
	if len(docs) == 0 {
		return sum, fmt.Errorf("%w: %s", domain.ErrNoValidRows, path)
	}

	batchSize := l.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	total := len(docs)
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		batch := docs[start:end]
		if err := l.upsertBatch(ctx, batch); err != nil {
			return sum, fmt.Errorf("batch %d: %w", sum.Batches+1, err)
		}
		sum.Batches++
		slog.Info("batch ingested",
			slog.Int("batch", sum.Batches),
			slog.Int("done", end),
			slog.Int("total", total))

		if end < total && l.BatchDelay > 0 {
			select {
			case <-time.After(l.BatchDelay):
			case <-ctx.Done():
				return sum, ctx.Err()
			}
		}
	}
	return sum, nil
}

// parseRecords reads and validates all CSV rows without touching the
// network. Split out so validation is testable on its own.
func parseRecords(r io.Reader) ([]Document, Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	// Header row.
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, Summary{}, fmt.Errorf("%w: empty file", domain.ErrNoValidRows)
		}
		return nil, Summary{}, fmt.Errorf("read header: %w", err)
	}

	var docs []Document
	sum := Summary{}
	lineNumber := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		sum.TotalLines++
		if err != nil {
			slog.Warn("malformed CSV row skipped", slog.Int("line", lineNumber), slog.Any("error", err))
			sum.Skipped++
			continue
		}
		doc, ok := buildDocument(rec, lineNumber)
		if !ok {
			sum.Skipped++
			continue
		}
		docs = append(docs, doc)
		sum.Loaded++
	}
	return docs, sum, nil
}

// buildDocument validates one row and renders it into an embeddable
// document. Only Writing Task 2 rows with a question, essay and overall
// score are accepted.
func buildDocument(rec []string, lineNumber int) (Document, bool) {
	if len(rec) < minColumns {
		slog.Debug("row skipped: too few columns", slog.Int("line", lineNumber), slog.Int("columns", len(rec)))
		return Document{}, false
	}
	taskType := trimmed(rec, colTaskType)
	if taskType != "2" {
		slog.Debug("row skipped: not a task 2 essay", slog.Int("line", lineNumber), slog.String("task_type", taskType))
		return Document{}, false
	}
	question := trimmed(rec, colQuestion)
	rawEssay := trimmed(rec, colEssay)
	overallScore := trimmed(rec, colOverallScore)
	if question == "" || rawEssay == "" || overallScore == "" {
		slog.Debug("row skipped: missing required fields", slog.Int("line", lineNumber))
		return Document{}, false
	}

	cleanEssay := textx.CleanEssay(rawEssay)
	topic := textx.ExtractMainTopic(question)
	wordCount := textx.CountWords(cleanEssay)

	content := formatDocument(question, cleanEssay,
		trimmed(rec, colExaminerComment),
		trimmed(rec, colTRScore), trimmed(rec, colCCScore),
		trimmed(rec, colLRScore), trimmed(rec, colGRAScore),
		overallScore)

	return Document{
		Content: content,
		Metadata: map[string]any{
			"type":        "task2_essay",
			"band":        overallScore,
			"question":    question,
			"topic":       topic,
			"word_count":  wordCount,
			"source_line": lineNumber,
			"text":        content,
		},
		SourceLine: lineNumber,
	}, true
}

func trimmed(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return textx.SanitizeText(rec[i])
}

func formatDocument(question, essay, examinerComment, trScore, ccScore, lrScore, graScore, overallScore string) string {
	return fmt.Sprintf(
		"IELTS Writing Task 2 Essay (Band %s)\n\nQuestion:\n%s\n\nEssay:\n%s\n\n"+
			"Examiner Comments:\n%s\n\nScores:\n- Task Response: %s\n"+
			"- Coherence & Cohesion: %s\n- Lexical Resource: %s\n"+
			"- Grammatical Range & Accuracy: %s\n- Overall: %s",
		overallScore, question, essay, examinerComment,
		trScore, ccScore, lrScore, graScore, overallScore)
}

// upsertBatch embeds one batch, writes it to Qdrant under deterministic
// IDs and snapshots the collection so the batch survives a node restart.
func (l *Loader) upsertBatch(ctx domain.Context, batch []Document) error {
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Content
	}
	vectors, err := l.AI.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: embed returned %d vectors for %d documents", domain.ErrUpstream, len(vectors), len(batch))
	}
	payloads := make([]map[string]any, len(batch))
	ids := make([]any, len(batch))
	for i, d := range batch {
		payloads[i] = d.Metadata
		ids[i] = uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("line-%d", d.SourceLine))).String()
	}
	if err := l.Q.UpsertPoints(ctx, l.Collection, vectors, payloads, ids); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if err := l.Q.CreateSnapshot(ctx, l.Collection); err != nil {
		return fmt.Errorf("snapshot after upsert: %w", err)
	}
	return nil
}
