package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/embermind/aura/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	id    string
	types []events.EventType

	mu   sync.Mutex
	seen []*events.TaskEvent
}

func (s *recordingSubscriber) ID() string                     { return s.id }
func (s *recordingSubscriber) EventTypes() []events.EventType { return s.types }

func (s *recordingSubscriber) OnEvent(event *events.TaskEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, event)
}

func (s *recordingSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestBus_DeliversToTypedSubscriber(t *testing.T) {
	bus := events.NewBus(16)
	bus.Start()
	defer bus.Close()

	sub := &recordingSubscriber{id: "sub1", types: []events.EventType{events.TaskCompleted}}
	bus.Subscribe(sub)

	bus.Publish(&events.TaskEvent{Type: events.TaskCompleted, TaskID: "t1"})
	bus.Publish(&events.TaskEvent{Type: events.TaskFailed, TaskID: "t2"})

	waitFor(t, func() bool { return sub.count() == 1 })
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, "t1", sub.seen[0].TaskID)
	assert.False(t, sub.seen[0].Timestamp.IsZero())
}

func TestBus_WildcardSeesEverything(t *testing.T) {
	bus := events.NewBus(16)
	bus.Start()
	defer bus.Close()

	sub := &recordingSubscriber{id: "all"}
	bus.Subscribe(sub)

	bus.Publish(&events.TaskEvent{Type: events.TaskSubmitted, TaskID: "t1"})
	bus.Publish(&events.TaskEvent{Type: events.TaskStarted, TaskID: "t1"})
	bus.Publish(&events.TaskEvent{Type: events.TaskCompleted, TaskID: "t1"})

	waitFor(t, func() bool { return sub.count() == 3 })
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus(16)
	bus.Start()
	defer bus.Close()

	sub := &recordingSubscriber{id: "gone", types: []events.EventType{events.TaskFailed}}
	bus.Subscribe(sub)
	bus.Unsubscribe("gone")

	bus.Publish(&events.TaskEvent{Type: events.TaskFailed, TaskID: "t1"})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sub.count())
}

func TestBus_DebouncesProgressFlood(t *testing.T) {
	bus := events.NewBus(64)
	bus.Start()
	defer bus.Close()

	sub := &recordingSubscriber{id: "p", types: []events.EventType{events.TaskProgress}}
	bus.Subscribe(sub)

	for i := 0; i < 20; i++ {
		bus.Publish(&events.TaskEvent{Type: events.TaskProgress, TaskID: "t1", ProgressPct: float64(i)})
	}

	waitFor(t, func() bool { return sub.count() >= 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sub.count(), "duplicates inside the window are dropped")
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := events.NewBus(16)
	bus.Start()

	sub := &recordingSubscriber{id: "s"}
	bus.Subscribe(sub)
	bus.Close()

	bus.Publish(&events.TaskEvent{Type: events.TaskCompleted, TaskID: "t1"})
	assert.Zero(t, sub.count())
}

func TestDebouncer_Cleanup(t *testing.T) {
	d := events.NewDebouncer(10 * time.Millisecond)
	event := &events.TaskEvent{Type: events.TaskProgress, TaskID: "t1"}

	require.False(t, d.ShouldSkip(event))
	require.True(t, d.ShouldSkip(event))

	time.Sleep(20 * time.Millisecond)
	d.Cleanup()
	assert.False(t, d.ShouldSkip(event))
}
