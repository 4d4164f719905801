package orchestrator

import (
	"sync"
	"time"

	"github.com/embermind/aura/core/events"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/scheduler"
)

// degradedWindow marks health as degraded while a task failure is this
// recent.
const degradedWindow = 5 * time.Minute

// Health is a point-in-time status snapshot of the orchestration layer.
type Health struct {
	Status          string           `json:"status"`
	Uptime          time.Duration    `json:"uptime"`
	ActiveSessions  int              `json:"active_sessions"`
	Scheduler       *scheduler.Stats `json:"scheduler,omitempty"`
	Memory          *memory.Stats    `json:"memory,omitempty"`
	TasksCompleted  int64            `json:"tasks_completed"`
	TasksFailed     int64            `json:"tasks_failed"`
	LastTaskFailure *time.Time       `json:"last_task_failure,omitempty"`
}

// HealthCheck reports the orchestrator's view of its collaborators.
func (o *Orchestrator) HealthCheck() Health {
	now := o.now()

	health := Health{
		Status:         "ok",
		Uptime:         now.Sub(o.started),
		ActiveSessions: o.sessions.ActiveSessions(),
	}

	if o.scheduler != nil {
		stats := o.scheduler.Stats()
		health.Scheduler = &stats
	}
	if o.memory != nil {
		stats := o.memory.Stats()
		health.Memory = &stats
	}

	completed, failed, lastFailure := o.health.snapshot()
	health.TasksCompleted = completed
	health.TasksFailed = failed
	if !lastFailure.IsZero() {
		t := lastFailure
		health.LastTaskFailure = &t
		if now.Sub(lastFailure) < degradedWindow {
			health.Status = "degraded"
		}
	}

	return health
}

// healthMonitor listens on the task event bus and keeps the failure counters
// HealthCheck reports.
type healthMonitor struct {
	mu          sync.Mutex
	completed   int64
	failed      int64
	lastFailure time.Time
}

func newHealthMonitor() *healthMonitor {
	return &healthMonitor{}
}

func (h *healthMonitor) ID() string { return "orchestrator_health" }

func (h *healthMonitor) EventTypes() []events.EventType {
	return []events.EventType{events.TaskCompleted, events.TaskFailed}
}

func (h *healthMonitor) OnEvent(event *events.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Type {
	case events.TaskCompleted:
		h.completed++
	case events.TaskFailed:
		h.failed++
		h.lastFailure = event.Timestamp
	}
}

func (h *healthMonitor) snapshot() (completed, failed int64, lastFailure time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed, h.failed, h.lastFailure
}
