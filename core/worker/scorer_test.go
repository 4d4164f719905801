package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker is a configurable worker for routing tests.
type fakeWorker struct {
	id         string
	confidence float64
	caps       []string
	delay      time.Duration
	panics     bool

	result  domain.WorkerResult
	procErr error
}

func (f *fakeWorker) ID() string { return f.id }

func (f *fakeWorker) CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore {
	if f.panics {
		panic("scoring blew up")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return domain.CapabilityScore{
		WorkerID:            f.id,
		Confidence:          f.confidence,
		MatchedCapabilities: f.caps,
	}
}

func (f *fakeWorker) Describe() worker.Descriptor {
	return worker.Descriptor{Domain: f.id, Capabilities: f.caps}
}

func (f *fakeWorker) Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error) {
	if f.procErr != nil {
		return domain.WorkerResult{}, f.procErr
	}
	res := f.result
	if res.WorkerID == "" {
		res.WorkerID = f.id
	}
	return res, nil
}

func newRegistry(t *testing.T, workers ...worker.Worker) *worker.Registry {
	t.Helper()
	reg := worker.NewRegistry()
	for _, w := range workers {
		require.NoError(t, reg.Register(w))
	}
	return reg
}

func TestRegistry_DuplicateID(t *testing.T) {
	reg := worker.NewRegistry()
	require.NoError(t, reg.Register(&fakeWorker{id: "travel"}))
	assert.Error(t, reg.Register(&fakeWorker{id: "travel"}))
	assert.Equal(t, 1, reg.Len())
}

func TestScorer_RanksByConfidence(t *testing.T) {
	reg := newRegistry(t,
		&fakeWorker{id: "travel", confidence: 0.4},
		&fakeWorker{id: "weather", confidence: 0.9},
		&fakeWorker{id: "finance", confidence: 0.7},
	)
	s := worker.NewScorer(reg, worker.ScorerConfig{})

	scores := s.Score(context.Background(), domain.Request{Message: "storm near the pass?"})
	require.Len(t, scores, 3)
	assert.Equal(t, "weather", scores[0].WorkerID)
	assert.Equal(t, "finance", scores[1].WorkerID)
	assert.Equal(t, "travel", scores[2].WorkerID)
}

func TestScorer_TiesPreserveRegistrationOrder(t *testing.T) {
	reg := newRegistry(t,
		&fakeWorker{id: "first", confidence: 0.5},
		&fakeWorker{id: "second", confidence: 0.5},
		&fakeWorker{id: "third", confidence: 0.5},
	)
	s := worker.NewScorer(reg, worker.ScorerConfig{})

	// Routing determinism: identical scores must produce identical rankings
	// across repeated runs.
	for i := 0; i < 20; i++ {
		scores := s.Score(context.Background(), domain.Request{Message: "anything"})
		require.Len(t, scores, 3)
		assert.Equal(t, "first", scores[0].WorkerID)
		assert.Equal(t, "second", scores[1].WorkerID)
		assert.Equal(t, "third", scores[2].WorkerID)
	}
}

func TestScorer_TimeoutScoresZero(t *testing.T) {
	reg := newRegistry(t,
		&fakeWorker{id: "slow", confidence: 0.9, delay: 500 * time.Millisecond},
		&fakeWorker{id: "fast", confidence: 0.3},
	)
	s := worker.NewScorer(reg, worker.ScorerConfig{Timeout: 20 * time.Millisecond})

	scores := s.Score(context.Background(), domain.Request{})
	require.Len(t, scores, 2)
	assert.Equal(t, "fast", scores[0].WorkerID)
	assert.Equal(t, "slow", scores[1].WorkerID)
	assert.Zero(t, scores[1].Confidence)
}

func TestScorer_PanicScoresZero(t *testing.T) {
	reg := newRegistry(t,
		&fakeWorker{id: "flaky", panics: true},
		&fakeWorker{id: "steady", confidence: 0.6},
	)
	s := worker.NewScorer(reg, worker.ScorerConfig{})

	scores := s.Score(context.Background(), domain.Request{})
	require.Len(t, scores, 2)
	assert.Equal(t, "steady", scores[0].WorkerID)
	assert.Zero(t, scores[1].Confidence)
}

func TestScorer_ClampsConfidence(t *testing.T) {
	reg := newRegistry(t, &fakeWorker{id: "eager", confidence: 1.7})
	s := worker.NewScorer(reg, worker.ScorerConfig{})

	scores := s.Score(context.Background(), domain.Request{})
	require.Len(t, scores, 1)
	assert.Equal(t, 1.0, scores[0].Confidence)
}

func TestScorer_EmptyRegistry(t *testing.T) {
	s := worker.NewScorer(worker.NewRegistry(), worker.ScorerConfig{})
	assert.Empty(t, s.Score(context.Background(), domain.Request{}))
}
