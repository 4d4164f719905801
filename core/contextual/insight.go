package contextual

import (
	"fmt"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/google/uuid"
)

// InsightRetention is the sliding window after which derived insights are
// pruned.
const InsightRetention = 24 * time.Hour

// Insight is a conclusion derived by cross-referencing two factor types.
// It holds weak references to factor keys, never the factors themselves,
// and is recomputed on every context update.
type Insight struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	FactorRefs    []string        `json:"factors"`
	Confidence    float64         `json:"confidence"`
	Priority      domain.Priority `json:"priority"`
	CreatedAt     time.Time       `json:"created_at"`
	RelevantUntil *time.Time      `json:"relevant_until,omitempty"`
}

// stale reports whether the insight fell out of the retention window or its
// own relevance horizon.
func (i *Insight) stale(now time.Time) bool {
	if now.Sub(i.CreatedAt) > InsightRetention {
		return true
	}
	return i.RelevantUntil != nil && now.After(*i.RelevantUntil)
}

func newInsightID() string {
	return fmt.Sprintf("insight_%s", uuid.New().String()[:8])
}

// factorRef renders a weak reference to a factor for insight bookkeeping.
func factorRef(f *Factor) string {
	return fmt.Sprintf("%s.%s", f.Type, f.Key)
}

// PairAnalyzer inspects two buckets of factors and either derives an
// insight or returns nil. Analyzers must be pure: they run while the
// per-user state is locked.
type PairAnalyzer interface {
	// Pair returns the two factor types this analyzer cross-references.
	Pair() (FactorType, FactorType)

	// Analyze derives an insight from the two buckets, or returns nil.
	Analyze(a, b []*Factor, now time.Time) *Insight
}
