package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/events"
)

// =============================================================================
// Background Task Scheduler
// =============================================================================

var (
	ErrSchedulerClosed = errors.New("scheduler is closed")
	ErrQueueFull       = errors.New("scheduler queue is full")
)

// Handler executes one background task attempt. The returned map becomes
// the task's result on success.
type Handler func(ctx context.Context, task *BackgroundTask) (map[string]any, error)

// Scheduler runs background tasks across four priority lanes. Part of the
// worker pool is reserved for the high and critical lanes so urgent work
// is never stuck behind low-priority backlog.
type Scheduler struct {
	store *TaskStore
	bus   *events.Bus

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu       sync.Mutex
	lanes    [domain.NumLanes][]string
	queueLen int

	jobReady    chan struct{}
	urgentReady chan struct{}

	cancelMu  sync.Mutex
	running   map[string]context.CancelFunc
	requested map[string]bool

	watchMu  sync.Mutex
	watchers map[string][]chan struct{}

	numWorkers   int
	numUrgent    int
	maxQueueSize int
	retry        RetryPolicy
	jitter       float64
	onFailure    func(*BackgroundTask)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
	closed  atomic.Bool

	submitted int64
	completed int64
	failed    int64
	retried   int64
	cancelled int64
	dropped   int64

	laneStats [domain.NumLanes]laneStats

	logger *slog.Logger
	now    func() time.Time
}

type laneStats struct {
	submitted int64
	completed int64
}

// Config configures the scheduler. Store is required.
type Config struct {
	Store *TaskStore

	// Bus receives task lifecycle events (optional).
	Bus *events.Bus

	// NumWorkers is the total consumer pool size (default 4).
	NumWorkers int

	// NumUrgent is how many of those workers only service the high and
	// critical lanes (default 1, always < NumWorkers).
	NumUrgent int

	// MaxQueueSize bounds queued task ids across all lanes (default 1000).
	MaxQueueSize int

	// Retry shapes the backoff between attempts.
	Retry RetryPolicy

	// Jitter is the ± fraction applied to retry delays (default 0.1).
	Jitter float64

	// OnFailure runs after a task exhausts its retries.
	OnFailure func(*BackgroundTask)

	Logger *slog.Logger
	Now    func() time.Time
}

// New creates a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("scheduler: nil task store")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.NumUrgent <= 0 {
		cfg.NumUrgent = 1
	}
	if cfg.NumUrgent >= cfg.NumWorkers {
		cfg.NumUrgent = cfg.NumWorkers - 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = 0.1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:        cfg.Store,
		bus:          cfg.Bus,
		handlers:     make(map[string]Handler),
		jobReady:     make(chan struct{}, cfg.MaxQueueSize),
		urgentReady:  make(chan struct{}, cfg.MaxQueueSize),
		running:      make(map[string]context.CancelFunc),
		requested:    make(map[string]bool),
		watchers:     make(map[string][]chan struct{}),
		numWorkers:   cfg.NumWorkers,
		numUrgent:    cfg.NumUrgent,
		maxQueueSize: cfg.MaxQueueSize,
		retry:        cfg.Retry,
		jitter:       cfg.Jitter,
		onFailure:    cfg.OnFailure,
		ctx:          ctx,
		cancel:       cancel,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}, nil
}

// RegisterHandler binds a task type to its handler. Submissions of an
// unregistered type fail at execution time, not submit time.
func (s *Scheduler) RegisterHandler(taskType string, handler Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[taskType] = handler
}

// Start launches the consumer pool.
func (s *Scheduler) Start() {
	if s.started.Swap(true) {
		return
	}
	for i := 0; i < s.numWorkers-s.numUrgent; i++ {
		s.wg.Add(1)
		go s.worker(false)
	}
	for i := 0; i < s.numUrgent; i++ {
		s.wg.Add(1)
		go s.worker(true)
	}
	s.logger.Info("task scheduler started",
		"workers", s.numWorkers, "urgent_reserved", s.numUrgent)
}

// Stop halts the consumer pool. Queued tasks stay pending.
func (s *Scheduler) Stop() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// Submit registers a task and queues it, or holds it until its
// scheduled_for time. Returns the stable task id.
func (s *Scheduler) Submit(sub Submission) (string, error) {
	if s.closed.Load() {
		return "", ErrSchedulerClosed
	}

	now := s.now()
	task, err := sub.task(now)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(task); err != nil {
		return "", err
	}

	atomic.AddInt64(&s.submitted, 1)
	atomic.AddInt64(&s.laneStats[task.Priority.Lane()].submitted, 1)
	s.publish(&events.TaskEvent{
		Type: events.TaskSubmitted, TaskID: task.ID, TaskType: task.Type, Owner: task.Owner,
	})

	if task.ScheduledFor != nil && task.ScheduledFor.After(now) {
		s.holdUntil(task.ID, task.Priority, task.ScheduledFor.Sub(now))
		return task.ID, nil
	}

	if !s.enqueue(task.ID, task.Priority) {
		atomic.AddInt64(&s.dropped, 1)
		s.store.CAS(task.ID, []TaskStatus{StatusPending}, StatusFailed, func(t *BackgroundTask) {
			t.Error = ErrQueueFull.Error()
		})
		return "", ErrQueueFull
	}
	return task.ID, nil
}

// holdUntil keeps a deferred task out of the queue until its time comes.
// Holding is the scheduler's job, not the queue's.
func (s *Scheduler) holdUntil(taskID string, priority domain.Priority, wait time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.enqueue(taskID, priority)
		case <-s.ctx.Done():
		}
	}()
}

func (s *Scheduler) enqueue(taskID string, priority domain.Priority) bool {
	lane := priority.Lane()

	s.mu.Lock()
	if s.queueLen >= s.maxQueueSize {
		s.mu.Unlock()
		return false
	}
	s.lanes[lane] = append(s.lanes[lane], taskID)
	s.queueLen++
	s.mu.Unlock()

	s.signal(s.jobReady)
	if lane >= domain.PriorityHigh.Lane() {
		s.signal(s.urgentReady)
	}
	return true
}

func (s *Scheduler) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// worker services the lanes top-down. Urgent workers only look at the high
// and critical lanes, which gives those lanes reserved capacity.
func (s *Scheduler) worker(urgent bool) {
	defer s.wg.Done()

	ready := s.jobReady
	minLane := 0
	if urgent {
		ready = s.urgentReady
		minLane = domain.PriorityHigh.Lane()
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ready:
		}

		for {
			taskID := s.pop(minLane)
			if taskID == "" {
				break
			}
			s.runTask(taskID)
		}
	}
}

func (s *Scheduler) pop(minLane int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for lane := domain.NumLanes - 1; lane >= minLane; lane-- {
		if len(s.lanes[lane]) == 0 {
			continue
		}
		taskID := s.lanes[lane][0]
		s.lanes[lane] = s.lanes[lane][1:]
		s.queueLen--
		return taskID
	}
	return ""
}

// runTask drives one attempt of a task through its handler.
func (s *Scheduler) runTask(taskID string) {
	now := s.now()
	task, swapped := s.store.CAS(taskID, []TaskStatus{StatusPending}, StatusRunning, func(t *BackgroundTask) {
		t.StartedAt = &now
	})
	if !swapped {
		return
	}

	s.publish(&events.TaskEvent{
		Type: events.TaskStarted, TaskID: task.ID, TaskType: task.Type, Owner: task.Owner,
	})

	var ctx context.Context
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, task.Timeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	s.trackRunning(task.ID, cancel)

	result, err := s.invoke(ctx, task)

	cancel()
	wasRequested := s.untrackRunning(task.ID)

	if err == nil {
		s.completeTask(task.ID, result)
		return
	}

	if wasRequested && errors.Is(err, context.Canceled) {
		s.finish(task.ID, []TaskStatus{StatusRunning}, StatusCancelled, events.TaskCancelled, func(t *BackgroundTask) {
			t.Error = err.Error()
		})
		atomic.AddInt64(&s.cancelled, 1)
		return
	}

	s.handleFailure(task, err)
}

func (s *Scheduler) invoke(ctx context.Context, task *BackgroundTask) (result map[string]any, err error) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[task.Type]
	s.handlersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for task type %q", task.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler(ctx, task)
}

// handleFailure either re-enqueues the task with exponential backoff or
// marks it failed for good.
func (s *Scheduler) handleFailure(task *BackgroundTask, taskErr error) {
	if task.RetryCount < task.MaxRetries {
		updated, swapped := s.store.CAS(task.ID, []TaskStatus{StatusRunning}, StatusRetrying, func(t *BackgroundTask) {
			t.RetryCount++
			t.Error = taskErr.Error()
		})
		if !swapped {
			return
		}

		atomic.AddInt64(&s.retried, 1)
		s.publish(&events.TaskEvent{
			Type: events.TaskRetrying, TaskID: task.ID, TaskType: task.Type,
			Owner: task.Owner, Error: taskErr.Error(), RetryCount: updated.RetryCount,
		})

		delay := AddJitter(s.retry.Delay(updated.RetryCount-1), s.jitter)
		s.logger.Debug("task retry scheduled",
			"task", task.ID, "attempt", updated.RetryCount, "delay", delay)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
				if _, ok := s.store.CAS(task.ID, []TaskStatus{StatusRetrying}, StatusPending, nil); ok {
					s.enqueue(task.ID, task.Priority)
				}
			case <-s.ctx.Done():
			}
		}()
		return
	}

	swapped := s.finish(task.ID, []TaskStatus{StatusRunning}, StatusFailed, events.TaskFailed, func(t *BackgroundTask) {
		t.Error = taskErr.Error()
	})
	if swapped {
		atomic.AddInt64(&s.failed, 1)
		if s.onFailure != nil {
			if failed, ok := s.store.Get(task.ID); ok {
				s.onFailure(failed)
			}
		}
	}
}

func (s *Scheduler) completeTask(taskID string, result map[string]any) {
	swapped := s.finish(taskID, []TaskStatus{StatusRunning}, StatusCompleted, events.TaskCompleted, func(t *BackgroundTask) {
		t.Result = result
		t.ProgressPct = 100
	})
	if swapped {
		atomic.AddInt64(&s.completed, 1)
		if task, ok := s.store.Get(taskID); ok {
			atomic.AddInt64(&s.laneStats[task.Priority.Lane()].completed, 1)
		}
	}
}

// finish applies a terminal CAS, stamps the completion time, publishes the
// event, and wakes watchers.
func (s *Scheduler) finish(taskID string, from []TaskStatus, to TaskStatus, eventType events.EventType, mutate func(*BackgroundTask)) bool {
	now := s.now()
	task, swapped := s.store.CAS(taskID, from, to, func(t *BackgroundTask) {
		t.CompletedAt = &now
		if mutate != nil {
			mutate(t)
		}
	})
	if !swapped {
		return false
	}

	s.publish(&events.TaskEvent{
		Type: eventType, TaskID: task.ID, TaskType: task.Type,
		Owner: task.Owner, Error: task.Error, RetryCount: task.RetryCount,
	})
	s.notifyTerminal(taskID)
	return true
}

// Status returns a copy of a task by id. Lookups during a retry window
// report retrying, never failed.
func (s *Scheduler) Status(taskID string) (*BackgroundTask, bool) {
	return s.store.Get(taskID)
}

// Cancel asks a task to stop. Pending and retrying tasks are cancelled
// outright; a running task has its context cancelled and may still finish.
// Returns false for unknown or already-terminal tasks.
func (s *Scheduler) Cancel(taskID string) bool {
	_, swapped := s.store.CAS(taskID, []TaskStatus{StatusPending, StatusRetrying}, StatusCancelled, nil)
	if swapped {
		atomic.AddInt64(&s.cancelled, 1)
		if task, ok := s.store.Get(taskID); ok {
			s.publish(&events.TaskEvent{
				Type: events.TaskCancelled, TaskID: task.ID, TaskType: task.Type, Owner: task.Owner,
			})
		}
		s.notifyTerminal(taskID)
		return true
	}

	s.cancelMu.Lock()
	cancel, isRunning := s.running[taskID]
	if isRunning {
		s.requested[taskID] = true
	}
	s.cancelMu.Unlock()

	if isRunning {
		cancel()
		return true
	}
	return false
}

// CancelOwned cancels every live task belonging to an owner. Returns how
// many were asked to stop.
func (s *Scheduler) CancelOwned(owner string) int {
	count := 0
	for _, task := range s.store.Owned(owner) {
		if s.Cancel(task.ID) {
			count++
		}
	}
	return count
}

// UpdateProgress records handler progress on a live task.
func (s *Scheduler) UpdateProgress(taskID string, pct float64, note string) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	ok := s.store.Update(taskID, func(t *BackgroundTask) {
		t.ProgressPct = pct
		t.ProgressNote = note
	})
	if !ok {
		return fmt.Errorf("update progress: no live task %s", taskID)
	}

	s.publish(&events.TaskEvent{
		Type: events.TaskProgress, TaskID: taskID, ProgressPct: pct, Note: note,
	})
	return nil
}

// Complete marks an externally-executed task as done.
func (s *Scheduler) Complete(taskID string, result map[string]any) bool {
	swapped := s.finish(taskID, []TaskStatus{StatusPending, StatusRunning}, StatusCompleted, events.TaskCompleted, func(t *BackgroundTask) {
		t.Result = result
		t.ProgressPct = 100
	})
	if swapped {
		atomic.AddInt64(&s.completed, 1)
	}
	return swapped
}

// Fail marks an externally-executed task as failed, bypassing retries.
func (s *Scheduler) Fail(taskID string, errMsg string) bool {
	swapped := s.finish(taskID, []TaskStatus{StatusPending, StatusRunning}, StatusFailed, events.TaskFailed, func(t *BackgroundTask) {
		t.Error = errMsg
	})
	if swapped {
		atomic.AddInt64(&s.failed, 1)
	}
	return swapped
}

// Cleanup drops archived tasks older than the cutoff.
func (s *Scheduler) Cleanup(olderThan time.Duration) (int64, error) {
	return s.store.Cleanup(olderThan)
}

func (s *Scheduler) trackRunning(taskID string, cancel context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.running[taskID] = cancel
}

func (s *Scheduler) untrackRunning(taskID string) bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	delete(s.running, taskID)
	requested := s.requested[taskID]
	delete(s.requested, taskID)
	return requested
}

// WaitTerminal blocks until the task reaches a terminal status or the
// context expires.
func (s *Scheduler) WaitTerminal(ctx context.Context, taskID string) (*BackgroundTask, error) {
	ch := make(chan struct{})
	s.watchMu.Lock()
	s.watchers[taskID] = append(s.watchers[taskID], ch)
	s.watchMu.Unlock()

	// The task may have gone terminal before the watcher registered.
	if task, ok := s.store.Get(taskID); ok && task.Status.Terminal() {
		s.dropWatcher(taskID, ch)
		return task, nil
	}

	select {
	case <-ch:
		task, ok := s.store.Get(taskID)
		if !ok {
			return nil, fmt.Errorf("task %s vanished", taskID)
		}
		return task, nil
	case <-ctx.Done():
		s.dropWatcher(taskID, ch)
		return nil, ctx.Err()
	}
}

func (s *Scheduler) dropWatcher(taskID string, ch chan struct{}) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	kept := s.watchers[taskID][:0]
	for _, w := range s.watchers[taskID] {
		if w != ch {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		delete(s.watchers, taskID)
	} else {
		s.watchers[taskID] = kept
	}
}

func (s *Scheduler) notifyTerminal(taskID string) {
	s.watchMu.Lock()
	chans := s.watchers[taskID]
	delete(s.watchers, taskID)
	s.watchMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

func (s *Scheduler) publish(event *events.TaskEvent) {
	if s.bus == nil {
		return
	}
	event.Timestamp = s.now()
	s.bus.Publish(event)
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	Submitted   int64                `json:"submitted"`
	Completed   int64                `json:"completed"`
	Failed      int64                `json:"failed"`
	Retried     int64                `json:"retried"`
	Cancelled   int64                `json:"cancelled"`
	Dropped     int64                `json:"dropped"`
	QueueLength int                  `json:"queue_length"`
	ActiveTasks int                  `json:"active_tasks"`
	Lanes       map[string]LaneStats `json:"lanes"`
}

// LaneStats summarizes one priority lane.
type LaneStats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
}

// Stats snapshots the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	queueLen := s.queueLen
	s.mu.Unlock()

	stats := Stats{
		Submitted:   atomic.LoadInt64(&s.submitted),
		Completed:   atomic.LoadInt64(&s.completed),
		Failed:      atomic.LoadInt64(&s.failed),
		Retried:     atomic.LoadInt64(&s.retried),
		Cancelled:   atomic.LoadInt64(&s.cancelled),
		Dropped:     atomic.LoadInt64(&s.dropped),
		QueueLength: queueLen,
		ActiveTasks: s.store.ActiveCount(),
		Lanes:       make(map[string]LaneStats, domain.NumLanes),
	}

	for _, priority := range []domain.Priority{
		domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityCritical,
	} {
		lane := priority.Lane()
		stats.Lanes[string(priority)] = LaneStats{
			Submitted: atomic.LoadInt64(&s.laneStats[lane].submitted),
			Completed: atomic.LoadInt64(&s.laneStats[lane].completed),
		}
	}
	return stats
}
