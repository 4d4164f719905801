package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/embermind/aura/core/domain"
)

// RecurringTask describes work re-submitted on an interval. The next run
// is scheduled only after the previous one reaches a terminal status, so
// runs never overlap.
type RecurringTask struct {
	Name     string
	Type     string
	Payload  map[string]any
	Priority domain.Priority
	Owner    string
	Interval time.Duration
	Timeout  time.Duration
}

// RegisterRecurring starts the re-submission loop for a recurring task.
// The loop stops with the scheduler.
func (s *Scheduler) RegisterRecurring(rec RecurringTask) error {
	if rec.Type == "" {
		return fmt.Errorf("recurring task: empty type")
	}
	if rec.Interval <= 0 {
		return fmt.Errorf("recurring task %s: interval must be positive", rec.Type)
	}
	if s.closed.Load() {
		return ErrSchedulerClosed
	}

	s.wg.Add(1)
	go s.recurringLoop(rec)
	return nil
}

func (s *Scheduler) recurringLoop(rec RecurringTask) {
	defer s.wg.Done()

	for {
		taskID, err := s.Submit(Submission{
			Name:     rec.Name,
			Type:     rec.Type,
			Payload:  rec.Payload,
			Priority: rec.Priority,
			Owner:    rec.Owner,
			Timeout:  rec.Timeout,
		})
		if err != nil {
			if errors.Is(err, ErrSchedulerClosed) {
				return
			}
			s.logger.Warn("recurring submission failed", "type", rec.Type, "error", err)
		} else {
			if _, err := s.WaitTerminal(s.ctx, taskID); err != nil {
				return
			}
		}

		timer := time.NewTimer(rec.Interval)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}
