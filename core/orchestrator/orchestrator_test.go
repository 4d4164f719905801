package orchestrator_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/coordinator"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/events"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/orchestrator"
	"github.com/embermind/aura/core/proactive"
	"github.com/embermind/aura/core/scheduler"
	"github.com/embermind/aura/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorker struct {
	id         string
	confidence float64
	content    string
	fail       bool
}

func (w *stubWorker) ID() string { return w.id }

func (w *stubWorker) CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore {
	return domain.CapabilityScore{WorkerID: w.id, Confidence: w.confidence}
}

func (w *stubWorker) Describe() worker.Descriptor {
	return worker.Descriptor{Domain: w.id}
}

func (w *stubWorker) Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error) {
	if w.fail {
		return domain.WorkerResult{WorkerID: w.id, Err: "worker broke"}, nil
	}
	return domain.WorkerResult{
		WorkerID:   w.id,
		Success:    true,
		Content:    w.content,
		Confidence: w.confidence,
		Sources:    []string{w.id + "_db"},
	}, nil
}

type harness struct {
	orch     *orchestrator.Orchestrator
	sched    *scheduler.Scheduler
	sessions *proactive.Manager
	engine   *contextual.Engine
	mem      *memory.Store
	bus      *events.Bus
}

func newHarness(t *testing.T, workers []worker.Worker, fallback worker.Worker) *harness {
	t.Helper()

	engine, err := contextual.NewEngine(contextual.Config{})
	require.NoError(t, err)

	storeCfg := scheduler.DefaultTaskStoreConfig()
	storeCfg.DBPath = filepath.Join(t.TempDir(), "tasks.db")
	store, err := scheduler.NewTaskStore(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(64)
	bus.Start()
	t.Cleanup(bus.Close)

	sched, err := scheduler.New(scheduler.Config{
		Store: store,
		Bus:   bus,
		Retry: scheduler.RetryPolicy{
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2.0,
		},
	})
	require.NoError(t, err)
	orchestrator.RegisterTaskHandlers(sched, engine, nil)
	sched.Start()
	t.Cleanup(sched.Stop)

	mem, err := memory.NewStore(memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	sessions, err := proactive.NewManager(proactive.Config{
		Engine:    engine,
		Submitter: orchestrator.NewAnalysisSubmitter(sched),
		Archiver:  orchestrator.NewSessionArchiver(sched),
	})
	require.NoError(t, err)

	registry := worker.NewRegistry()
	for _, w := range workers {
		require.NoError(t, registry.Register(w))
	}
	coord := coordinator.New(registry, coordinator.Config{})

	orch, err := orchestrator.New(orchestrator.Config{
		Coordinator: coord,
		Fallback:    fallback,
		Sessions:    sessions,
		Engine:      engine,
		Scheduler:   sched,
		Memory:      mem,
		Bus:         bus,
	})
	require.NoError(t, err)

	return &harness{orch: orch, sched: sched, sessions: sessions, engine: engine, mem: mem, bus: bus}
}

func TestNew_RequiresCoordinatorAndSessions(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Config{})
	assert.Error(t, err)
}

func TestProcessMessage_RoutesToBestWorker(t *testing.T) {
	h := newHarness(t, []worker.Worker{
		&stubWorker{id: "travel", confidence: 0.9, content: "three flights found"},
		&stubWorker{id: "finance", confidence: 0.2, content: "balance is fine"},
	}, nil)

	resp, err := h.orch.ProcessMessage(context.Background(), "user1", "flights to denver", nil)
	require.NoError(t, err)
	assert.Equal(t, "three flights found", resp.Content)
	assert.Equal(t, []string{"travel"}, resp.Workers)
}

func TestProcessMessage_UpdatesSessionOnEveryPath(t *testing.T) {
	h := newHarness(t, []worker.Worker{
		&stubWorker{id: "travel", confidence: 0.9, content: "ok"},
	}, nil)

	_, err := h.orch.ProcessMessage(context.Background(), "user1", "hi", nil)
	require.NoError(t, err)

	sess := h.sessions.Get("user1")
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.InteractionCount)

	// A failed turn still counts as activity.
	h2 := newHarness(t, nil, nil)
	_, err = h2.orch.ProcessMessage(context.Background(), "user2", "hi", nil)
	require.Error(t, err)
	sess2 := h2.sessions.Get("user2")
	require.NotNil(t, sess2)
	assert.Equal(t, 1, sess2.InteractionCount)
}

func TestProcessMessage_FallsBackToGeneralWorker(t *testing.T) {
	fallback := &stubWorker{id: "general", confidence: 0.3, content: "general answer"}
	h := newHarness(t, nil, fallback)

	resp, err := h.orch.ProcessMessage(context.Background(), "user1", "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "general answer", resp.Content)
	assert.Equal(t, []string{"general"}, resp.Workers)

	routing, ok := resp.Metadata["routing"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, routing["fallback"])
}

func TestProcessMessage_FallbackFailureSurfaces(t *testing.T) {
	h := newHarness(t, nil, &stubWorker{id: "general", fail: true})

	_, err := h.orch.ProcessMessage(context.Background(), "user1", "anything", nil)
	assert.Error(t, err)
}

func TestProcessMessage_StoresInteraction(t *testing.T) {
	h := newHarness(t, []worker.Worker{
		&stubWorker{id: "weather", confidence: 0.8, content: "sunny in tahoe"},
	}, nil)

	_, err := h.orch.ProcessMessage(context.Background(), "user1", "weather in tahoe", nil)
	require.NoError(t, err)

	memories, err := h.mem.RelevantMemories(context.Background(), "user1", "tahoe", 5)
	require.NoError(t, err)
	require.NotEmpty(t, memories)
	assert.Equal(t, "sunny in tahoe", memories[0].Response)
	assert.Equal(t, "weather", memories[0].Domain)
}

func TestSessionLifecycleAndCancellation(t *testing.T) {
	h := newHarness(t, nil, &stubWorker{id: "general", confidence: 0.3, content: "ok"})

	sess, err := h.orch.StartSession("user1", domain.ModeProactive)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProactive, sess.Mode)

	// A large context update defers an analysis task owned by the user.
	_, err = h.orch.UpdateContext(context.Background(), "user1", map[contextual.FactorType]map[string]any{
		contextual.FactorActivity: {
			"k1": 1.0, "k2": 2.0, "k3": 3.0, "k4": 4.0,
		},
	}, "test")
	require.NoError(t, err)

	assert.True(t, h.orch.EndSession("user1"))
	assert.False(t, h.orch.EndSession("user1"), "second end is a no-op")
}

func TestAnalysisTask_CompletesWithSnapshotCounts(t *testing.T) {
	h := newHarness(t, nil, nil)

	_, err := h.engine.Update("user1", map[contextual.FactorType]map[string]any{
		contextual.FactorEnvironmental: {"temperature": 21.0},
	}, "sensor")
	require.NoError(t, err)

	submitter := orchestrator.NewAnalysisSubmitter(h.sched)
	taskID, err := submitter.SubmitAnalysis(context.Background(), "user1", []string{"temperature"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := h.sched.WaitTerminal(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, scheduler.StatusCompleted, task.Status)
	assert.Equal(t, 1, task.Result["factors"])
}

func TestArchiveTask_PersistsCounters(t *testing.T) {
	h := newHarness(t, nil, nil)

	archiver := orchestrator.NewSessionArchiver(h.sched)
	require.NoError(t, archiver.ArchiveSession(context.Background(), proactive.SessionRecord{
		UserID:           "user1",
		Mode:             domain.ModeReactive,
		StartedAt:        time.Now().Add(-time.Hour),
		EndedAt:          time.Now(),
		InteractionCount: 7,
	}))

	require.Eventually(t, func() bool {
		stats := h.sched.Stats()
		return stats.Completed >= 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t, []worker.Worker{
		&stubWorker{id: "travel", confidence: 0.9, content: "ok"},
	}, nil)

	_, err := h.orch.ProcessMessage(context.Background(), "user1", "hi", nil)
	require.NoError(t, err)

	health := h.orch.HealthCheck()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.ActiveSessions)
	require.NotNil(t, health.Scheduler)
	require.NotNil(t, health.Memory)
}

type completionCapture struct {
	mu     sync.Mutex
	byType map[string][]string
}

func (c *completionCapture) ID() string { return "completion_capture" }

func (c *completionCapture) EventTypes() []events.EventType {
	return []events.EventType{events.TaskCompleted}
}

func (c *completionCapture) OnEvent(event *events.TaskEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byType[event.TaskType] = append(c.byType[event.TaskType], event.TaskID)
}

func (c *completionCapture) taskIDs(taskType string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.byType[taskType]...)
}

func TestRegisterMaintenance_SweepsExpiredArchive(t *testing.T) {
	storeCfg := scheduler.DefaultTaskStoreConfig()
	storeCfg.DBPath = filepath.Join(t.TempDir(), "tasks.db")
	store, err := scheduler.NewTaskStore(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(64)
	bus.Start()
	t.Cleanup(bus.Close)
	capture := &completionCapture{byType: make(map[string][]string)}
	bus.Subscribe(capture)

	sched, err := scheduler.New(scheduler.Config{
		Store: store,
		Bus:   bus,
		Retry: scheduler.RetryPolicy{
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2.0,
		},
	})
	require.NoError(t, err)
	sched.RegisterHandler("echo", func(ctx context.Context, task *scheduler.BackgroundTask) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})

	// A negative retention puts the cutoff in the future, so every archived
	// row is eligible on the next sweep.
	require.NoError(t, orchestrator.RegisterMaintenance(sched, orchestrator.MaintenanceConfig{
		Retention: -time.Second,
		Interval:  20 * time.Millisecond,
	}))
	sched.Start()
	t.Cleanup(sched.Stop)

	taskID, err := sched.Submit(scheduler.Submission{Type: "echo"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := sched.WaitTerminal(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, scheduler.StatusCompleted, task.Status)

	// The completed task lands in the archive asynchronously; a later sweep
	// must report it removed.
	require.Eventually(t, func() bool {
		for _, id := range capture.taskIDs(orchestrator.CleanupTaskType) {
			sweep, ok := store.Get(id)
			if !ok {
				continue
			}
			if removed, _ := sweep.Result["removed"].(int64); removed >= 1 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRegisterMaintenance_DefaultsInterval(t *testing.T) {
	storeCfg := scheduler.DefaultTaskStoreConfig()
	storeCfg.DBPath = filepath.Join(t.TempDir(), "tasks.db")
	store, err := scheduler.NewTaskStore(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched, err := scheduler.New(scheduler.Config{Store: store, Retry: scheduler.RetryPolicy{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}})
	require.NoError(t, err)
	t.Cleanup(sched.Stop)

	require.NoError(t, orchestrator.RegisterMaintenance(sched, orchestrator.MaintenanceConfig{
		Retention: 7 * 24 * time.Hour,
	}))
}

func TestHealthCheck_DegradedAfterTaskFailure(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bus.Publish(&events.TaskEvent{
		Type:   events.TaskFailed,
		TaskID: "task_x",
		Error:  "handler broke",
	})

	require.Eventually(t, func() bool {
		health := h.orch.HealthCheck()
		return health.TasksFailed == 1 && health.Status == "degraded"
	}, 2*time.Second, 10*time.Millisecond)
}
