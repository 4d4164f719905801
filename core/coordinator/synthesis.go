package coordinator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/embermind/aura/core/domain"
)

// synthesize merges fan-out results into one response. Successful results
// are ordered by their original capability score; each contributes a labeled
// section. Aggregate confidence is the score-weighted mean of the result
// confidences, clamped to [0,1].
func (c *Coordinator) synthesize(collaborators []domain.CapabilityScore, results []domain.WorkerResult) (*domain.Response, error) {
	type contribution struct {
		score  domain.CapabilityScore
		result domain.WorkerResult
	}

	var succeeded []contribution
	var failures []*WorkerError

	for i, result := range results {
		if result.Success {
			succeeded = append(succeeded, contribution{collaborators[i], result})
			continue
		}
		failures = append(failures, &WorkerError{
			WorkerID: result.WorkerID,
			Err:      fmt.Errorf("%s", result.Err),
		})
	}

	if len(succeeded) == 0 {
		return nil, &AllWorkersFailedError{Errors: failures}
	}

	sort.SliceStable(succeeded, func(i, j int) bool {
		return succeeded[i].score.Confidence > succeeded[j].score.Confidence
	})

	var sections []string
	var workers []string
	sources := make([]string, 0)
	seenSource := make(map[string]bool)
	var weighted float64

	for _, contrib := range succeeded {
		label := strings.ToUpper(contrib.result.WorkerID[:1]) + contrib.result.WorkerID[1:]
		sections = append(sections, fmt.Sprintf("**%s**\n%s", label, contrib.result.Content))
		workers = append(workers, contrib.result.WorkerID)
		weighted += contrib.result.Confidence * contrib.score.Confidence

		for _, src := range contrib.result.Sources {
			if !seenSource[src] {
				seenSource[src] = true
				sources = append(sources, src)
			}
		}
	}

	confidence := weighted / float64(len(succeeded))
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	metadata := map[string]any{
		"synthesis": map[string]any{
			"contributors": workers,
			"failed":       len(failures),
		},
	}
	if len(failures) > 0 {
		detail := make([]string, 0, len(failures))
		for _, f := range failures {
			detail = append(detail, f.Error())
		}
		metadata["worker_errors"] = detail
		c.logger.Info("synthesis proceeded with partial results",
			"succeeded", len(succeeded), "failed", len(failures))
	}

	return &domain.Response{
		Content:    strings.Join(sections, "\n\n"),
		Confidence: confidence,
		Sources:    sources,
		Workers:    workers,
		MultiAgent: true,
		Metadata:   metadata,
	}, nil
}
