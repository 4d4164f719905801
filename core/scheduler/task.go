package scheduler

import (
	"fmt"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusRetrying  TaskStatus = "retrying"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal task never
// transitions again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// BackgroundTask is one unit of deferred work. The id is stable across
// retries of the same logical attempt.
type BackgroundTask struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Payload      map[string]any  `json:"payload,omitempty"`
	Priority     domain.Priority `json:"priority"`
	Owner        string          `json:"owner,omitempty"`
	Status       TaskStatus      `json:"status"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	Timeout      time.Duration   `json:"timeout,omitempty"`
	MaxRetries   int             `json:"max_retries"`
	RetryCount   int             `json:"retry_count"`
	ProgressPct  float64         `json:"progress_pct"`
	ProgressNote string          `json:"progress_note,omitempty"`
	Result       map[string]any  `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// clone copies the task so callers never share the store's instance.
func (t *BackgroundTask) clone() *BackgroundTask {
	copied := *t
	if t.Payload != nil {
		copied.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			copied.Payload[k] = v
		}
	}
	if t.Result != nil {
		copied.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			copied.Result[k] = v
		}
	}
	return &copied
}

// Submission describes a task to submit. A zero ID gets one generated.
type Submission struct {
	ID           string
	Name         string
	Type         string
	Payload      map[string]any
	Priority     domain.Priority
	Owner        string
	ScheduledFor *time.Time
	Timeout      time.Duration
	MaxRetries   int
}

func (s *Submission) task(now time.Time) (*BackgroundTask, error) {
	if s.Type == "" {
		return nil, fmt.Errorf("submit task: empty type")
	}
	id := s.ID
	if id == "" {
		id = fmt.Sprintf("task_%s", uuid.New().String()[:8])
	}
	priority := s.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("submit task: unknown priority %q", s.Priority)
	}
	name := s.Name
	if name == "" {
		name = s.Type
	}
	return &BackgroundTask{
		ID:           id,
		Name:         name,
		Type:         s.Type,
		Payload:      s.Payload,
		Priority:     priority,
		Owner:        s.Owner,
		Status:       StatusPending,
		ScheduledFor: s.ScheduledFor,
		Timeout:      s.Timeout,
		MaxRetries:   s.MaxRetries,
		CreatedAt:    now,
	}, nil
}
