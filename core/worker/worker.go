// Package worker defines the specialized-worker contract and the capability
// scorer that asks every registered worker how confident it is for a request.
package worker

import (
	"context"

	"github.com/embermind/aura/core/domain"
)

// Descriptor describes a worker's area of competence.
type Descriptor struct {
	Domain       string   `json:"domain"`
	Capabilities []string `json:"capabilities"`
}

// Worker is a specialized handler capable of fully answering one category of
// request. Implementations must not panic for expected failure modes:
// Process wraps failures into a WorkerResult with Success=false.
type Worker interface {
	// ID returns the stable worker identifier used in scores and results.
	ID() string

	// CanHandle returns a confidence in [0,1] that this worker can fully
	// answer the request. It must be cheap; no model calls.
	CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore

	// Describe returns the worker's domain and capability list.
	Describe() Descriptor

	// Process answers the request. Expected failures are reported through
	// the result, not the error; a non-nil error means the worker could not
	// produce a result at all.
	Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error)
}
