package contextual

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// Context Awareness Engine
// =============================================================================

// Engine maintains per-user contextual state. State is sharded by user id
// and every mutation for one user is serialized behind that user's own
// lock; updates for different users never contend.
type Engine struct {
	shards    []*engineShard
	numShards int

	analyzers []PairAnalyzer
	rules     []compiledRule

	logger *slog.Logger
	now    func() time.Time
}

type engineShard struct {
	mu    sync.RWMutex
	users map[string]*userState
}

// userState is the per-user aggregate. Its mutex serializes updates for one
// user; analyzers and rules run inside it and must stay pure.
type userState struct {
	mu       sync.Mutex
	factors  map[factorKey]*Factor
	insights []*Insight
	needs    []*Need
}

// Config configures the engine.
type Config struct {
	// NumShards controls user sharding (default 16).
	NumShards int

	// Analyzers derive insights from factor-type pairs. Defaults to
	// DefaultAnalyzers().
	Analyzers []PairAnalyzer

	// Rules is the declarative anticipation rule set. Defaults to
	// DefaultRules().
	Rules []Rule

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewEngine creates an engine, compiling the rule set's trigger patterns.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 16
	}
	if cfg.Analyzers == nil {
		cfg.Analyzers = DefaultAnalyzers()
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	compiled, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	shards := make([]*engineShard, cfg.NumShards)
	for i := range shards {
		shards[i] = &engineShard{users: make(map[string]*userState)}
	}

	return &Engine{
		shards:    shards,
		numShards: cfg.NumShards,
		analyzers: cfg.Analyzers,
		rules:     compiled,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}, nil
}

func (e *Engine) shard(userID string) *engineShard {
	return e.shards[fnv32(userID)%uint32(e.numShards)]
}

// fnv32 computes a simple hash for sharding.
func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (e *Engine) state(userID string) *userState {
	shard := e.shard(userID)

	shard.mu.RLock()
	st, ok := shard.users[userID]
	shard.mu.RUnlock()
	if ok {
		return st
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if st, ok = shard.users[userID]; ok {
		return st
	}
	st = &userState{factors: make(map[factorKey]*Factor)}
	shard.users[userID] = st
	return st
}

// defaultTTL gives short-lived factor types an expiry when the caller did
// not supply one.
func defaultTTL(typ FactorType) time.Duration {
	switch typ {
	case FactorTemporal:
		return 2 * time.Hour
	case FactorLocation:
		return 4 * time.Hour
	case FactorEnvironmental:
		return 12 * time.Hour
	default:
		return 0
	}
}

// Update ingests one batch of contextual observations for a user, then
// recomputes insights for the factor-type pairs present in the update and
// re-evaluates the anticipation rules. Returns a snapshot of the resulting
// state.
func (e *Engine) Update(userID string, updates map[FactorType]map[string]any, source string) (*Snapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("update context: empty user id")
	}

	st := e.state(userID)
	now := e.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	updatedTypes := make(map[FactorType]bool)
	for typ, kv := range updates {
		if !typ.Valid() {
			e.logger.Warn("ignoring unknown factor type", "type", typ, "user", userID)
			continue
		}
		updatedTypes[typ] = true
		for key, value := range kv {
			e.applyFactorLocked(st, typ, key, value, source, now)
		}
	}

	e.pruneFactorsLocked(st, now)
	e.deriveInsightsLocked(st, updatedTypes, now)
	e.evaluateRulesLocked(st, userID, now)

	return e.snapshotLocked(st, now), nil
}

// applyFactorLocked replaces any factor with the same (type, key). The new
// factor's timestamp never moves backwards for that key.
func (e *Engine) applyFactorLocked(st *userState, typ FactorType, key string, value any, source string, now time.Time) {
	fk := factorKey{Type: typ, Key: key}

	ts := now
	if prev, ok := st.factors[fk]; ok && prev.Timestamp.After(ts) {
		ts = prev.Timestamp
	}

	factor := &Factor{
		Type:       typ,
		Key:        key,
		Value:      value,
		Confidence: 1.0,
		Timestamp:  ts,
		Source:     source,
		Priority:   classifyPriority(typ, key),
	}
	if ttl := defaultTTL(typ); ttl > 0 {
		expires := now.Add(ttl)
		factor.ExpiresAt = &expires
	}

	st.factors[fk] = factor
}

func (e *Engine) pruneFactorsLocked(st *userState, now time.Time) {
	for fk, f := range st.factors {
		if f.Expired(now) {
			delete(st.factors, fk)
		}
	}
}

// deriveInsightsLocked runs each analyzer whose pair of factor types was
// touched by this update, then prunes stale insights.
func (e *Engine) deriveInsightsLocked(st *userState, updatedTypes map[FactorType]bool, now time.Time) {
	buckets := make(map[FactorType][]*Factor)
	for _, f := range st.factors {
		buckets[f.Type] = append(buckets[f.Type], f)
	}

	for _, analyzer := range e.analyzers {
		ta, tb := analyzer.Pair()
		if !updatedTypes[ta] && !updatedTypes[tb] {
			continue
		}
		insight := e.runAnalyzer(analyzer, buckets[ta], buckets[tb], now)
		if insight != nil {
			st.insights = append(st.insights, insight)
		}
	}

	kept := st.insights[:0]
	for _, ins := range st.insights {
		if !ins.stale(now) {
			kept = append(kept, ins)
		}
	}
	st.insights = kept
}

// runAnalyzer isolates analyzer panics so one bad analyzer cannot poison an
// update.
func (e *Engine) runAnalyzer(analyzer PairAnalyzer, a, b []*Factor, now time.Time) (insight *Insight) {
	defer func() {
		if r := recover(); r != nil {
			ta, tb := analyzer.Pair()
			e.logger.Error("pair analyzer panicked", "pair", fmt.Sprintf("%sx%s", ta, tb), "panic", r)
			insight = nil
		}
	}()
	return analyzer.Analyze(a, b, now)
}

// evaluateRulesLocked drops expired needs, then evaluates every rule against
// the flattened factor values. Rule failures are isolated: a rule that
// errors is logged and skipped, the rest of the pass continues. A rule with
// an unexpired need already outstanding does not fire again.
func (e *Engine) evaluateRulesLocked(st *userState, userID string, now time.Time) {
	kept := st.needs[:0]
	active := make(map[string]bool)
	for _, n := range st.needs {
		if !n.expired(now) {
			kept = append(kept, n)
			active[n.RuleID] = true
		}
	}
	st.needs = kept

	values := flattenLocked(st)

	for i := range e.rules {
		cr := &e.rules[i]
		if active[cr.rule.ID] {
			continue
		}

		fired, err := cr.evaluate(values)
		if err != nil {
			e.logger.Warn("anticipation rule evaluation failed",
				"rule", cr.rule.ID, "user", userID, "error", err)
			continue
		}
		if fired {
			st.needs = append(st.needs, cr.need(now))
		}
	}
}

// flattenLocked produces the most-recent value per key across all factor
// types.
func flattenLocked(st *userState) map[string]any {
	latest := make(map[string]*Factor)
	for _, f := range st.factors {
		if prev, ok := latest[f.Key]; !ok || f.Timestamp.After(prev.Timestamp) {
			latest[f.Key] = f
		}
	}
	values := make(map[string]any, len(latest))
	for key, f := range latest {
		values[key] = f.Value
	}
	return values
}

// =============================================================================
// Snapshots
// =============================================================================

// Snapshot is a point-in-time copy of one user's contextual state.
type Snapshot struct {
	Factors  []*Factor
	Insights []*Insight
	Needs    []*Need
}

// Snapshot returns a pruned copy of the user's current state.
func (e *Engine) Snapshot(userID string) *Snapshot {
	st := e.state(userID)
	now := e.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	e.pruneFactorsLocked(st, now)
	return e.snapshotLocked(st, now)
}

func (e *Engine) snapshotLocked(st *userState, now time.Time) *Snapshot {
	snap := &Snapshot{
		Factors:  make([]*Factor, 0, len(st.factors)),
		Insights: make([]*Insight, 0, len(st.insights)),
		Needs:    make([]*Need, 0, len(st.needs)),
	}
	for _, f := range st.factors {
		copied := *f
		snap.Factors = append(snap.Factors, &copied)
	}
	for _, ins := range st.insights {
		if ins.stale(now) {
			continue
		}
		copied := *ins
		snap.Insights = append(snap.Insights, &copied)
	}
	for _, n := range st.needs {
		if n.expired(now) {
			continue
		}
		copied := *n
		snap.Needs = append(snap.Needs, &copied)
	}

	sort.SliceStable(snap.Factors, func(i, j int) bool {
		if snap.Factors[i].Priority.Rank() != snap.Factors[j].Priority.Rank() {
			return snap.Factors[i].Priority.Rank() > snap.Factors[j].Priority.Rank()
		}
		return snap.Factors[i].Timestamp.After(snap.Factors[j].Timestamp)
	})
	sort.SliceStable(snap.Insights, func(i, j int) bool {
		if snap.Insights[i].Priority.Rank() != snap.Insights[j].Priority.Rank() {
			return snap.Insights[i].Priority.Rank() > snap.Insights[j].Priority.Rank()
		}
		return snap.Insights[i].CreatedAt.After(snap.Insights[j].CreatedAt)
	})
	sort.SliceStable(snap.Needs, func(i, j int) bool {
		return snap.Needs[i].ExpectedTime.Before(snap.Needs[j].ExpectedTime)
	})

	return snap
}

// TopInsight returns the highest-priority current insight, or nil.
func (e *Engine) TopInsight(userID string) *Insight {
	snap := e.Snapshot(userID)
	if len(snap.Insights) == 0 {
		return nil
	}
	return snap.Insights[0]
}

// EndUser drops all contextual state for a user.
func (e *Engine) EndUser(userID string) {
	shard := e.shard(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.users, userID)
}

// asFloat coerces the numeric value shapes factors carry in practice.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
