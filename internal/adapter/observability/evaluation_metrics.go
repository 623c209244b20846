package observability

import "sync"

// EvaluationMetrics accumulates per-band, per-criterion score observations in
// memory. Instances are injected where needed rather than shared as package
// state. Both maps are mutated under one lock so a band count can never be
// observed inconsistent with its score lists. State is never persisted.
type EvaluationMetrics struct {
	mu     sync.RWMutex
	scores map[string][]float64
	bands  map[string]int
}

// NewEvaluationMetrics creates an empty recorder.
func NewEvaluationMetrics() *EvaluationMetrics {
	return &EvaluationMetrics{
		scores: make(map[string][]float64),
		bands:  make(map[string]int),
	}
}

// TrackEvaluation appends score under band+"-"+criterion and increments the
// band count. Prometheus observation of criterion scores is ObserveScoring's
// job; keeping it out of here means one histogram sample per scored essay.
func (m *EvaluationMetrics) TrackEvaluation(band, criterion string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := band + "-" + criterion
	m.scores[key] = append(m.scores[key], score)
	m.bands[band]++
}

// AverageScoresByBand returns the arithmetic mean of every tracked key.
func (m *EvaluationMetrics) AverageScoresByBand() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	averages := make(map[string]float64, len(m.scores))
	for key, observed := range m.scores {
		if len(observed) == 0 {
			averages[key] = 0
			continue
		}
		sum := 0.0
		for _, s := range observed {
			sum += s
		}
		averages[key] = sum / float64(len(observed))
	}
	return averages
}

// BandDistribution returns a copy of the band observation counts.
func (m *EvaluationMetrics) BandDistribution() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.bands))
	for band, n := range m.bands {
		out[band] = n
	}
	return out
}

// Reset clears both maps atomically with respect to TrackEvaluation.
func (m *EvaluationMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scores = make(map[string][]float64)
	m.bands = make(map[string]int)
}
