package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/proactive"
	"github.com/embermind/aura/core/scheduler"
)

// Task types the orchestrator registers on the scheduler.
const (
	// AnalysisTaskType is the deferred context analysis task scheduled after
	// large context updates.
	AnalysisTaskType = "context_analysis"

	// ArchiveTaskType persists ended-session counters through the task
	// archive.
	ArchiveTaskType = "session_archive"

	// CleanupTaskType is the recurring sweep that drops expired rows from
	// the task archive.
	CleanupTaskType = "archive_cleanup"
)

const (
	analysisTimeout = time.Minute

	defaultCleanupInterval = time.Hour
	cleanupTimeout         = time.Minute
)

// AnalysisSubmitter adapts the scheduler to the session manager's deferred
// analysis and cancellation contract.
type AnalysisSubmitter struct {
	scheduler *scheduler.Scheduler
}

// NewAnalysisSubmitter wraps a scheduler as a proactive.TaskSubmitter.
func NewAnalysisSubmitter(s *scheduler.Scheduler) *AnalysisSubmitter {
	return &AnalysisSubmitter{scheduler: s}
}

// SubmitAnalysis queues one deferred analysis task owned by the user, so an
// ended session can cancel it.
func (a *AnalysisSubmitter) SubmitAnalysis(ctx context.Context, userID string, contextKeys []string) (string, error) {
	keys := make([]any, len(contextKeys))
	for i, k := range contextKeys {
		keys[i] = k
	}

	return a.scheduler.Submit(scheduler.Submission{
		Name: "deferred context analysis",
		Type: AnalysisTaskType,
		Payload: map[string]any{
			"user_id": userID,
			"keys":    keys,
		},
		Priority:   domain.PriorityMedium,
		Owner:      userID,
		Timeout:    analysisTimeout,
		MaxRetries: 2,
	})
}

// CancelOwned cancels every outstanding task owned by the user.
func (a *AnalysisSubmitter) CancelOwned(userID string) int {
	return a.scheduler.CancelOwned(userID)
}

// SessionArchiver persists session counters by submitting a low-priority
// archive task; once the task completes it lands in the durable task archive.
type SessionArchiver struct {
	scheduler *scheduler.Scheduler
}

// NewSessionArchiver wraps a scheduler as a proactive.Archiver.
func NewSessionArchiver(s *scheduler.Scheduler) *SessionArchiver {
	return &SessionArchiver{scheduler: s}
}

// ArchiveSession queues the archive write. The task is unowned so a
// session ending never cancels its own archival.
func (a *SessionArchiver) ArchiveSession(ctx context.Context, record proactive.SessionRecord) error {
	_, err := a.scheduler.Submit(scheduler.Submission{
		Name: "archive session counters",
		Type: ArchiveTaskType,
		Payload: map[string]any{
			"user_id":              record.UserID,
			"mode":                 string(record.Mode),
			"started_at":           record.StartedAt.Format(time.RFC3339),
			"ended_at":             record.EndedAt.Format(time.RFC3339),
			"context_update_count": record.ContextUpdateCount,
			"suggestion_count":     record.SuggestionCount,
			"interaction_count":    record.InteractionCount,
		},
		Priority: domain.PriorityLow,
	})
	return err
}

// RegisterTaskHandlers installs the orchestrator's background task handlers
// on the scheduler.
func RegisterTaskHandlers(s *scheduler.Scheduler, engine *contextual.Engine, gen contextual.Generator) {
	s.RegisterHandler(AnalysisTaskType, analysisHandler(engine, gen))
	s.RegisterHandler(ArchiveTaskType, archiveHandler())
}

// MaintenanceConfig bounds the recurring archive sweep.
type MaintenanceConfig struct {
	// Retention is how long terminal tasks stay queryable after archival.
	Retention time.Duration

	// Interval between sweeps (default one hour).
	Interval time.Duration
}

// RegisterMaintenance installs the cleanup handler and starts the recurring
// sweep that enforces the archive retention. The sweep runs unowned at low
// priority so it never competes with user work.
func RegisterMaintenance(s *scheduler.Scheduler, cfg MaintenanceConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultCleanupInterval
	}

	s.RegisterHandler(CleanupTaskType, cleanupHandler(s, cfg.Retention))
	return s.RegisterRecurring(scheduler.RecurringTask{
		Name:     "task archive cleanup",
		Type:     CleanupTaskType,
		Priority: domain.PriorityLow,
		Interval: cfg.Interval,
		Timeout:  cleanupTimeout,
	})
}

// cleanupHandler drops archived tasks older than the retention window and
// reports how many rows went.
func cleanupHandler(s *scheduler.Scheduler, retention time.Duration) scheduler.Handler {
	return func(ctx context.Context, task *scheduler.BackgroundTask) (map[string]any, error) {
		removed, err := s.Cleanup(retention)
		if err != nil {
			return nil, fmt.Errorf("cleanup task %s: %w", task.ID, err)
		}
		return map[string]any{"removed": removed}, nil
	}
}

// analysisHandler re-examines a user's contextual state after a batched
// update and, when a generator is wired, precomputes recommendations.
func analysisHandler(engine *contextual.Engine, gen contextual.Generator) scheduler.Handler {
	return func(ctx context.Context, task *scheduler.BackgroundTask) (map[string]any, error) {
		userID, _ := task.Payload["user_id"].(string)
		if userID == "" {
			return nil, fmt.Errorf("analysis task %s: missing user_id", task.ID)
		}
		if engine == nil {
			return nil, fmt.Errorf("analysis task %s: no engine wired", task.ID)
		}

		snap := engine.Snapshot(userID)
		result := map[string]any{
			"factors":  len(snap.Factors),
			"insights": len(snap.Insights),
			"needs":    len(snap.Needs),
		}

		if gen != nil {
			recs := engine.Recommendations(ctx, gen, userID, "")
			result["recommendations"] = recs
		}
		return result, nil
	}
}

// archiveHandler turns the submitted counters into the task result, which
// the store persists once the task goes terminal.
func archiveHandler() scheduler.Handler {
	return func(ctx context.Context, task *scheduler.BackgroundTask) (map[string]any, error) {
		if task.Payload == nil {
			return nil, fmt.Errorf("archive task %s: empty payload", task.ID)
		}
		return task.Payload, nil
	}
}
