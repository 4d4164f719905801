package coordinator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/embermind/aura/core/coordinator"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorker struct {
	id         string
	confidence float64
	content    string
	sources    []string
	resultConf float64
	procErr    error
	delay      time.Duration

	sawPeers []string
}

func (s *stubWorker) ID() string { return s.id }

func (s *stubWorker) CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore {
	return domain.CapabilityScore{WorkerID: s.id, Confidence: s.confidence}
}

func (s *stubWorker) Describe() worker.Descriptor {
	return worker.Descriptor{Domain: s.id}
}

func (s *stubWorker) Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error) {
	s.sawPeers = req.CollaborationPeers
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.WorkerResult{}, ctx.Err()
		}
	}
	if s.procErr != nil {
		return domain.WorkerResult{}, s.procErr
	}
	conf := s.resultConf
	if conf == 0 {
		conf = s.confidence
	}
	return domain.WorkerResult{
		WorkerID:   s.id,
		Success:    true,
		Content:    s.content,
		Confidence: conf,
		Sources:    s.sources,
	}, nil
}

func buildCoordinator(t *testing.T, cfg coordinator.Config, workers ...worker.Worker) *coordinator.Coordinator {
	t.Helper()
	reg := worker.NewRegistry()
	for _, w := range workers {
		require.NoError(t, reg.Register(w))
	}
	return coordinator.New(reg, cfg)
}

func TestProcess_NoWorkers(t *testing.T) {
	c := buildCoordinator(t, coordinator.Config{})
	_, err := c.Process(context.Background(), domain.Request{Message: "hello"})
	assert.ErrorIs(t, err, coordinator.ErrNoWorkerAvailable)
}

func TestProcess_AllZeroScores(t *testing.T) {
	c := buildCoordinator(t, coordinator.Config{},
		&stubWorker{id: "travel", confidence: 0},
	)
	_, err := c.Process(context.Background(), domain.Request{Message: "hello"})
	assert.ErrorIs(t, err, coordinator.ErrNoWorkerAvailable)
}

func TestProcess_SingleAgentPath(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, content: "take the coastal route"}
	b := &stubWorker{id: "weather", confidence: 0.69, content: "unused"}
	c := buildCoordinator(t, coordinator.Config{}, a, b)

	resp, err := c.Process(context.Background(), domain.Request{Message: "route home"})
	require.NoError(t, err)

	assert.False(t, resp.MultiAgent)
	assert.Equal(t, []string{"travel"}, resp.Workers)
	assert.Equal(t, "take the coastal route", resp.Content)
	assert.Empty(t, b.sawPeers)

	routing := resp.Metadata["routing"].(map[string]any)
	assert.Equal(t, "travel", routing["chosen_worker"])
}

func TestProcess_ThresholdBoundaryInclusive(t *testing.T) {
	// Exactly 0.7 joins the collaboration set; 0.65 does not.
	a := &stubWorker{id: "travel", confidence: 0.9, content: "route A"}
	b := &stubWorker{id: "weather", confidence: 0.7, content: "clear skies"}
	cWorker := &stubWorker{id: "finance", confidence: 0.65, content: "unused"}
	c := buildCoordinator(t, coordinator.Config{}, a, b, cWorker)

	resp, err := c.Process(context.Background(), domain.Request{Message: "trip tomorrow"})
	require.NoError(t, err)

	assert.True(t, resp.MultiAgent)
	assert.Equal(t, []string{"travel", "weather"}, resp.Workers)
	assert.Contains(t, resp.Content, "route A")
	assert.Contains(t, resp.Content, "clear skies")
	assert.NotContains(t, resp.Content, "unused")

	// Each collaborator saw the other as a peer.
	assert.Equal(t, []string{"weather"}, a.sawPeers)
	assert.Equal(t, []string{"travel"}, b.sawPeers)
}

func TestProcess_JustBelowThresholdIsSingleAgent(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, content: "route A"}
	b := &stubWorker{id: "weather", confidence: 0.699, content: "unused"}
	c := buildCoordinator(t, coordinator.Config{}, a, b)

	resp, err := c.Process(context.Background(), domain.Request{Message: "trip"})
	require.NoError(t, err)

	assert.False(t, resp.MultiAgent)
	assert.Equal(t, []string{"travel"}, resp.Workers)
}

func TestProcess_PartialFailureTolerated(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, content: "route A", sources: []string{"maps"}}
	b := &stubWorker{id: "weather", confidence: 0.7, procErr: errors.New("radar offline")}
	c := buildCoordinator(t, coordinator.Config{}, a, b)

	resp, err := c.Process(context.Background(), domain.Request{Message: "trip"})
	require.NoError(t, err)

	assert.True(t, resp.MultiAgent)
	assert.Equal(t, []string{"travel"}, resp.Workers)
	assert.Contains(t, resp.Content, "route A")

	// The failure is recorded in metadata, not surfaced as the error.
	detail := resp.Metadata["worker_errors"].([]string)
	require.Len(t, detail, 1)
	assert.Contains(t, detail[0], "radar offline")
}

func TestProcess_AllWorkersFailed(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, procErr: errors.New("gps lost")}
	b := &stubWorker{id: "weather", confidence: 0.8, procErr: errors.New("radar offline")}
	c := buildCoordinator(t, coordinator.Config{}, a, b)

	_, err := c.Process(context.Background(), domain.Request{Message: "trip"})
	var allFailed *coordinator.AllWorkersFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Len(t, allFailed.Errors, 2)
}

func TestProcess_SlowCollaboratorTimesOut(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, content: "route A"}
	b := &stubWorker{id: "weather", confidence: 0.8, content: "late", delay: time.Second}
	c := buildCoordinator(t, coordinator.Config{WorkerTimeout: 30 * time.Millisecond}, a, b)

	resp, err := c.Process(context.Background(), domain.Request{Message: "trip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"travel"}, resp.Workers)
}

func TestSynthesis_WeightedConfidenceAndSources(t *testing.T) {
	a := &stubWorker{id: "travel", confidence: 0.9, resultConf: 0.8, content: "A", sources: []string{"maps", "traffic"}}
	b := &stubWorker{id: "weather", confidence: 0.8, resultConf: 0.5, content: "B", sources: []string{"traffic", "radar"}}
	c := buildCoordinator(t, coordinator.Config{}, a, b)

	resp, err := c.Process(context.Background(), domain.Request{Message: "trip"})
	require.NoError(t, err)

	// (0.8*0.9 + 0.5*0.8) / 2 = 0.56
	assert.InDelta(t, 0.56, resp.Confidence, 1e-9)
	assert.Equal(t, []string{"maps", "traffic", "radar"}, resp.Sources)

	// Sections appear in score order with labels.
	idxA := strings.Index(resp.Content, "**Travel**")
	idxB := strings.Index(resp.Content, "**Weather**")
	require.GreaterOrEqual(t, idxA, 0)
	require.Greater(t, idxB, idxA)
}
