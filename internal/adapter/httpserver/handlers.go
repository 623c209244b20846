package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/config"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// EssayScorer is the scoring flow the handlers delegate to.
type EssayScorer interface {
	ScoreEssay(ctx domain.Context, req domain.EssayRequest) (domain.Evaluation, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Scorer      EssayScorer
	Metrics     *observability.EvaluationMetrics
	QdrantCheck func(ctx context.Context) error
	AICheck     func(ctx context.Context) error
}

var (
	vld     *validator.Validate
	vldOnce sync.Once
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, scorer EssayScorer, metrics *observability.EvaluationMetrics, qdrantCheck, aiCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Scorer: scorer, Metrics: metrics, QdrantCheck: qdrantCheck, AICheck: aiCheck}
}

// ScoreEssayHandler evaluates one Writing Task 2 essay and returns the full
// evaluation JSON.
func (s *Server) ScoreEssayHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Accept negotiation: only JSON responses supported
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a}}})
			return
		}
		// Cap body size to prevent abuse
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		var req struct {
			Question string `json:"question" validate:"required"`
			Essay    string `json:"essay" validate:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}
		ev, err := s.Scorer.ScoreEssay(r.Context(), domain.EssayRequest{Question: req.Question, Essay: req.Essay})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	}
}

// MetricsAveragesHandler returns per-band average criterion scores.
func (s *Server) MetricsAveragesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Metrics.AverageScoresByBand())
	}
}

// MetricsBandsHandler returns how many evaluations landed in each band.
func (s *Server) MetricsBandsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Metrics.BandDistribution())
	}
}

// MetricsResetHandler clears all recorded evaluation metrics.
func (s *Server) MetricsResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.Reset()
		LoggerFrom(r).Info("evaluation metrics reset")
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthzHandler reports process liveness.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs the registered dependency checks.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.QdrantCheck != nil {
			if err := s.QdrantCheck(ctx); err != nil {
				checks = append(checks, check{Name: "qdrant", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "qdrant", OK: true})
			}
		}
		if s.AICheck != nil {
			if err := s.AICheck(ctx); err != nil {
				checks = append(checks, check{Name: "ai", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "ai", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
