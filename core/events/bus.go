package events

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Task Event Bus
// =============================================================================

// EventType identifies a point in a background task's lifecycle.
type EventType string

const (
	TaskSubmitted EventType = "task_submitted"
	TaskStarted   EventType = "task_started"
	TaskProgress  EventType = "task_progress"
	TaskRetrying  EventType = "task_retrying"
	TaskCompleted EventType = "task_completed"
	TaskFailed    EventType = "task_failed"
	TaskCancelled EventType = "task_cancelled"
)

// TaskEvent is one lifecycle notification for a background task.
type TaskEvent struct {
	Type        EventType `json:"type"`
	TaskID      string    `json:"task_id"`
	TaskType    string    `json:"task_type"`
	Owner       string    `json:"owner,omitempty"`
	ProgressPct float64   `json:"progress_pct,omitempty"`
	Note        string    `json:"note,omitempty"`
	Error       string    `json:"error,omitempty"`
	RetryCount  int       `json:"retry_count,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Subscriber receives task events. An empty EventTypes slice subscribes to
// everything.
type Subscriber interface {
	ID() string
	EventTypes() []EventType
	OnEvent(event *TaskEvent)
}

// Debouncer suppresses duplicate events inside a time window. Progress
// events for a chatty handler would otherwise flood subscribers.
type Debouncer struct {
	window time.Duration
	seen   map[string]time.Time
	mu     sync.Mutex
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	return &Debouncer{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// ShouldSkip reports whether a duplicate of this event was seen within the
// window, recording it otherwise.
func (d *Debouncer) ShouldSkip(event *TaskEvent) bool {
	sig := fmt.Sprintf("%s:%s", event.Type, event.TaskID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[sig]; ok && time.Since(last) <= d.window {
		return true
	}
	d.seen[sig] = time.Now()
	return false
}

// Cleanup drops expired signatures so the seen map cannot grow unbounded.
func (d *Debouncer) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-d.window)
	for sig, last := range d.seen {
		if last.Before(cutoff) {
			delete(d.seen, sig)
		}
	}
}

// Bus fan-outs task events to subscribers on a single dispatch goroutine.
// Publishing never blocks: a full buffer drops the event.
type Bus struct {
	subscribers map[EventType][]Subscriber
	wildcards   []Subscriber

	buffer    chan *TaskEvent
	debouncer *Debouncer

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBus creates a bus with the given buffer size. Only progress events are
// debounced.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		buffer:      make(chan *TaskEvent, bufferSize),
		debouncer:   NewDebouncer(100 * time.Millisecond),
		done:        make(chan struct{}),
	}
}

// Start launches the dispatch goroutine.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.wg.Add(1)
	go b.dispatch()
}

// Publish queues an event for delivery. Progress events inside the debounce
// window and events that would overflow the buffer are dropped.
func (b *Bus) Publish(event *TaskEvent) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == TaskProgress && b.debouncer.ShouldSkip(event) {
		return
	}

	select {
	case b.buffer <- event:
	default:
	}
}

// Subscribe registers a subscriber for its declared event types.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	types := sub.EventTypes()
	if len(types) == 0 {
		b.wildcards = append(b.wildcards, sub)
		return
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], sub)
	}
}

// Unsubscribe removes a subscriber everywhere it is registered.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcards = filterSubs(b.wildcards, subscriberID)
	for t, subs := range b.subscribers {
		b.subscribers[t] = filterSubs(subs, subscriberID)
	}
}

func filterSubs(subs []Subscriber, id string) []Subscriber {
	filtered := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ID() != id {
			filtered = append(filtered, sub)
		}
	}
	return filtered
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.buffer:
			b.deliver(event)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) deliver(event *TaskEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.wildcards {
		sub.OnEvent(event)
	}
	for _, sub := range b.subscribers[event.Type] {
		sub.OnEvent(event)
	}
}

// Close stops dispatch. Buffered events not yet delivered are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
}
