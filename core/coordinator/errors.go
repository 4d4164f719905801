package coordinator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoWorkerAvailable is returned when capability scoring produced nothing
// usable. It is surfaced to the caller and never retried here.
var ErrNoWorkerAvailable = errors.New("no worker available for request")

// WorkerError records one worker's failure during a fan-out dispatch.
type WorkerError struct {
	WorkerID string
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.WorkerID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// AllWorkersFailedError is returned when every dispatched worker failed.
// Individual failures are recoverable; only total exhaustion escalates.
type AllWorkersFailedError struct {
	Errors []*WorkerError
}

func (e *AllWorkersFailedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, we := range e.Errors {
		parts = append(parts, we.Error())
	}
	return "all workers failed: " + strings.Join(parts, "; ")
}
