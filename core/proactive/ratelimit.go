package proactive

import "time"

// DefaultSuggestionLimit is the per-user suggestion budget per rolling hour.
const DefaultSuggestionLimit = 5

// suggestionWindow is the rolling window the budget applies to.
const suggestionWindow = time.Hour

// rateWindow tracks the hourly suggestion budget for one session. The
// window is checked lazily on each request; there is no timer. The counter
// resets only when the window rolls over.
type rateWindow struct {
	start time.Time
	count int
}

// allow reports whether one more suggestion fits the budget, consuming it
// if so. Caller holds the session's shard lock.
func (w *rateWindow) allow(now time.Time, limit int) bool {
	if now.Sub(w.start) >= suggestionWindow {
		w.start = now
		w.count = 0
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// allowSuggestionLocked consumes one unit of the session's hourly budget,
// mirroring the consumed total into SuggestionCount.
func (s *Session) allowSuggestionLocked(now time.Time, limit int) bool {
	if !s.limiter.allow(now, limit) {
		return false
	}
	s.SuggestionCount = s.limiter.count
	return true
}
