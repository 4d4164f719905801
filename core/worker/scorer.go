package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/embermind/aura/core/domain"
)

// DefaultScoreTimeout bounds a single worker's CanHandle call.
const DefaultScoreTimeout = 500 * time.Millisecond

// Scorer fans a request out to every registered worker, collects their
// self-reported confidences concurrently, and returns them ranked.
// No worker sees another's score.
type Scorer struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// ScorerConfig configures a Scorer.
type ScorerConfig struct {
	// Timeout bounds each worker's CanHandle call. Defaults to
	// DefaultScoreTimeout.
	Timeout time.Duration

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// NewScorer creates a Scorer over the given registry.
func NewScorer(registry *Registry, cfg ScorerConfig) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScoreTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scorer{
		registry: registry,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Score returns one CapabilityScore per registered worker, sorted by
// confidence descending. Ties preserve registration order, so repeated runs
// over the same scores produce the same ranking. A worker whose CanHandle
// panics or times out scores zero rather than failing the pass.
func (s *Scorer) Score(ctx context.Context, req domain.Request) []domain.CapabilityScore {
	workers := s.registry.Workers()
	if len(workers) == 0 {
		return nil
	}

	scores := make([]domain.CapabilityScore, len(workers))
	var wg sync.WaitGroup

	for i, w := range workers {
		wg.Add(1)
		go func(i int, w Worker) {
			defer wg.Done()
			scores[i] = s.scoreOne(ctx, w, req)
		}(i, w)
	}
	wg.Wait()

	// Stable sort keeps registration order among equal confidences.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	return scores
}

// scoreOne runs a single worker's CanHandle under the per-worker timeout.
func (s *Scorer) scoreOne(ctx context.Context, w Worker, req domain.Request) (score domain.CapabilityScore) {
	score = domain.CapabilityScore{WorkerID: w.ID()}

	scoreCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan domain.CapabilityScore, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("capability scoring panicked",
					"worker", w.ID(), "panic", r)
				done <- domain.CapabilityScore{WorkerID: w.ID()}
			}
		}()
		done <- w.CanHandle(scoreCtx, req)
	}()

	select {
	case got := <-done:
		got.WorkerID = w.ID()
		got.Confidence = clamp01(got.Confidence)
		return got
	case <-scoreCtx.Done():
		s.logger.Warn("capability scoring timed out", "worker", w.ID())
		return score
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
