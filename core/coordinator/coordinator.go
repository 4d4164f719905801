// Package coordinator routes a request to the best specialized worker, or
// fans it out to every worker above the collaboration threshold and merges
// their answers into one response.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/worker"
)

const (
	// DefaultCollaborationThreshold is the confidence cutoff (inclusive)
	// above which multiple workers are dispatched together.
	DefaultCollaborationThreshold = 0.7

	// DefaultWorkerTimeout bounds one worker's Process call so a slow
	// worker cannot block synthesis.
	DefaultWorkerTimeout = 30 * time.Second
)

// Coordinator scores, routes, dispatches, and synthesizes.
type Coordinator struct {
	registry  *worker.Registry
	scorer    *worker.Scorer
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

// Config configures a Coordinator.
type Config struct {
	// CollaborationThreshold overrides the fan-out cutoff. Defaults to
	// DefaultCollaborationThreshold.
	CollaborationThreshold float64

	// WorkerTimeout bounds each Process call. Defaults to
	// DefaultWorkerTimeout.
	WorkerTimeout time.Duration

	// ScoreTimeout bounds each CanHandle call.
	ScoreTimeout time.Duration

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a Coordinator over the given registry.
func New(registry *worker.Registry, cfg Config) *Coordinator {
	if cfg.CollaborationThreshold <= 0 {
		cfg.CollaborationThreshold = DefaultCollaborationThreshold
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = DefaultWorkerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		registry: registry,
		scorer: worker.NewScorer(registry, worker.ScorerConfig{
			Timeout: cfg.ScoreTimeout,
			Logger:  cfg.Logger,
		}),
		threshold: cfg.CollaborationThreshold,
		timeout:   cfg.WorkerTimeout,
		logger:    cfg.Logger,
	}
}

// Process routes the request. Workers scoring at or above the collaboration
// threshold are dispatched concurrently and their results merged; otherwise
// the single best-scoring worker answers alone.
func (c *Coordinator) Process(ctx context.Context, req domain.Request) (*domain.Response, error) {
	scores := c.scorer.Score(ctx, req)
	if len(scores) == 0 {
		return nil, ErrNoWorkerAvailable
	}

	best := scores[0]
	if best.Confidence <= 0 {
		return nil, ErrNoWorkerAvailable
	}

	collaborators := c.collaborators(scores)
	if len(collaborators) <= 1 {
		return c.dispatchSingle(ctx, req, best)
	}
	return c.dispatchCollaborative(ctx, req, collaborators)
}

// collaborators returns every score at or above the threshold. Exactly the
// threshold is included.
func (c *Coordinator) collaborators(scores []domain.CapabilityScore) []domain.CapabilityScore {
	var out []domain.CapabilityScore
	for _, s := range scores {
		if s.Confidence >= c.threshold {
			out = append(out, s)
		}
	}
	return out
}

// dispatchSingle passes the best worker's result through, annotated with
// routing metadata.
func (c *Coordinator) dispatchSingle(ctx context.Context, req domain.Request, score domain.CapabilityScore) (*domain.Response, error) {
	result := c.invoke(ctx, req, score)
	if !result.Success {
		return nil, &AllWorkersFailedError{
			Errors: []*WorkerError{{WorkerID: score.WorkerID, Err: fmt.Errorf("%s", result.Err)}},
		}
	}

	c.logger.Debug("single-agent dispatch",
		"worker", score.WorkerID, "confidence", score.Confidence)

	return &domain.Response{
		Content:    result.Content,
		Confidence: result.Confidence,
		Sources:    result.Sources,
		Workers:    []string{score.WorkerID},
		MultiAgent: false,
		Metadata: map[string]any{
			"routing": map[string]any{
				"chosen_worker": score.WorkerID,
				"score":         score.Confidence,
				"rationale":     score.Rationale,
			},
		},
	}, nil
}

// dispatchCollaborative fans the request out to every collaborator
// concurrently, tolerating partial failure, then synthesizes.
func (c *Coordinator) dispatchCollaborative(ctx context.Context, req domain.Request, collaborators []domain.CapabilityScore) (*domain.Response, error) {
	results := make([]domain.WorkerResult, len(collaborators))
	var wg sync.WaitGroup

	for i, score := range collaborators {
		wg.Add(1)
		go func(i int, score domain.CapabilityScore) {
			defer wg.Done()
			peerReq := req.CloneContext()
			peerReq.CollaborationPeers = peersOf(collaborators, score.WorkerID)
			results[i] = c.invoke(ctx, peerReq, score)
		}(i, score)
	}
	wg.Wait()

	return c.synthesize(collaborators, results)
}

// invoke runs one worker with a bounded wait. A worker that errors, panics,
// or exceeds its timeout yields a failed result rather than aborting peers.
func (c *Coordinator) invoke(ctx context.Context, req domain.Request, score domain.CapabilityScore) domain.WorkerResult {
	w := c.registry.Get(score.WorkerID)
	if w == nil {
		return domain.WorkerResult{
			WorkerID: score.WorkerID,
			Err:      "worker no longer registered",
		}
	}

	workCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.WorkerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.WorkerResult{
					WorkerID: score.WorkerID,
					Err:      fmt.Sprintf("worker panicked: %v", r),
				}
			}
		}()

		result, err := w.Process(workCtx, req)
		if err != nil {
			done <- domain.WorkerResult{WorkerID: score.WorkerID, Err: err.Error()}
			return
		}
		result.WorkerID = score.WorkerID
		done <- result
	}()

	select {
	case result := <-done:
		result.Elapsed = time.Since(start)
		if result.Err != "" {
			result.Success = false
			c.logger.Warn("worker failed", "worker", score.WorkerID, "error", result.Err)
		}
		return result
	case <-workCtx.Done():
		c.logger.Warn("worker timed out", "worker", score.WorkerID, "timeout", c.timeout)
		return domain.WorkerResult{
			WorkerID: score.WorkerID,
			Elapsed:  time.Since(start),
			Err:      "worker timed out",
		}
	}
}

func peersOf(collaborators []domain.CapabilityScore, self string) []string {
	peers := make([]string, 0, len(collaborators)-1)
	for _, s := range collaborators {
		if s.WorkerID != self {
			peers = append(peers, s.WorkerID)
		}
	}
	return peers
}
