package proactive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/domain"
)

// =============================================================================
// Proactive Session Manager
// =============================================================================

const (
	// DefaultIdleTimeout is how long a session may sit without activity
	// before it is treated as ended.
	DefaultIdleTimeout = 30 * time.Minute

	// analysisDeferThreshold is the context-key count above which an update
	// also schedules a deferred background analysis task. Batching here
	// keeps chatty inputs from creating a task per key.
	analysisDeferThreshold = 3

	defaultNumShards = 16
)

// Session is the per-user lifecycle aggregate: mode plus activity counters.
// All fields are guarded by the owning manager.
type Session struct {
	UserID             string      `json:"user_id"`
	Mode               domain.Mode `json:"mode"`
	StartedAt          time.Time   `json:"started_at"`
	LastActivity       time.Time   `json:"last_activity"`
	ContextUpdateCount int         `json:"context_update_count"`
	SuggestionCount    int         `json:"suggestion_count"`
	InteractionCount   int         `json:"interaction_count"`

	limiter rateWindow
}

// SessionRecord is the archived form of an ended session.
type SessionRecord struct {
	UserID             string      `json:"user_id"`
	Mode               domain.Mode `json:"mode"`
	StartedAt          time.Time   `json:"started_at"`
	EndedAt            time.Time   `json:"ended_at"`
	ContextUpdateCount int         `json:"context_update_count"`
	SuggestionCount    int         `json:"suggestion_count"`
	InteractionCount   int         `json:"interaction_count"`
}

// TaskSubmitter schedules deferred analysis work and cancels a user's
// outstanding tasks when the session ends.
type TaskSubmitter interface {
	SubmitAnalysis(ctx context.Context, userID string, contextKeys []string) (string, error)
	CancelOwned(userID string) int
}

// Archiver persists ended-session counters. Archival is fire-and-forget;
// failures are logged, never surfaced.
type Archiver interface {
	ArchiveSession(ctx context.Context, record SessionRecord) error
}

// Manager owns per-user proactive sessions. Sessions are sharded by user id
// so unrelated users never contend on one lock.
type Manager struct {
	shards    []*sessionShard
	numShards int

	engine     *contextual.Engine
	submitter  TaskSubmitter
	archiver   Archiver
	generator  contextual.Generator
	predictive Predictive

	suggestionLimit int
	idleTimeout     time.Duration

	logger *slog.Logger
	now    func() time.Time
}

type sessionShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Config configures the session manager. Engine is required; the
// collaborators are optional and their features degrade silently when
// absent.
type Config struct {
	Engine     *contextual.Engine
	Submitter  TaskSubmitter
	Archiver   Archiver
	Generator  contextual.Generator
	Predictive Predictive

	// SuggestionLimit is the per-user hourly suggestion budget (default 5).
	SuggestionLimit int

	// IdleTimeout ends sessions with no activity (default 30m).
	IdleTimeout time.Duration

	NumShards int
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("proactive manager: nil context engine")
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = DefaultSuggestionLimit
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = defaultNumShards
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	shards := make([]*sessionShard, cfg.NumShards)
	for i := range shards {
		shards[i] = &sessionShard{sessions: make(map[string]*Session)}
	}

	return &Manager{
		shards:          shards,
		numShards:       cfg.NumShards,
		engine:          cfg.Engine,
		submitter:       cfg.Submitter,
		archiver:        cfg.Archiver,
		generator:       cfg.Generator,
		predictive:      cfg.Predictive,
		suggestionLimit: cfg.SuggestionLimit,
		idleTimeout:     cfg.IdleTimeout,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}, nil
}

func (m *Manager) shard(userID string) *sessionShard {
	return m.shards[fnv32(userID)%uint32(m.numShards)]
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Start creates a session for the user, or returns the existing one. An
// empty mode defaults to reactive.
func (m *Manager) Start(userID string, mode domain.Mode) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("start session: empty user id")
	}
	if mode == "" {
		mode = domain.ModeReactive
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("start session: unknown mode %q", mode)
	}

	shard := m.shard(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if sess := m.liveLocked(shard, userID); sess != nil {
		return m.copyOf(sess), nil
	}

	now := m.now()
	sess := &Session{
		UserID:       userID,
		Mode:         mode,
		StartedAt:    now,
		LastActivity: now,
		limiter:      rateWindow{start: now},
	}
	shard.sessions[userID] = sess
	m.logger.Info("proactive session started", "user", userID, "mode", mode)
	return m.copyOf(sess), nil
}

// SetMode switches an existing session's mode.
func (m *Manager) SetMode(userID string, mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("set mode: unknown mode %q", mode)
	}

	shard := m.shard(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	sess := m.liveLocked(shard, userID)
	if sess == nil {
		return fmt.Errorf("set mode: no active session for %s", userID)
	}
	sess.Mode = mode
	sess.LastActivity = m.now()
	return nil
}

// Get returns a copy of the user's live session, or nil.
func (m *Manager) Get(userID string) *Session {
	shard := m.shard(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	sess := m.liveLocked(shard, userID)
	if sess == nil {
		return nil
	}
	return m.copyOf(sess)
}

// RecordInteraction bumps the interaction counter, creating the session on
// first contact.
func (m *Manager) RecordInteraction(userID string) {
	sess, shard := m.ensure(userID)
	defer shard.mu.Unlock()
	sess.InteractionCount++
	sess.LastActivity = m.now()
}

// UpdateContext feeds one batch of contextual observations through the
// awareness engine and applies the session's reflex policy: in any mode
// past passive, the single highest-priority insight may become one
// immediate suggestion, gated by the hourly budget. In proactive and
// predictive modes a large update additionally schedules a deferred
// background analysis task. The returned suggestion is nil when no reflex
// fired.
func (m *Manager) UpdateContext(ctx context.Context, userID string, updates map[contextual.FactorType]map[string]any, source string) (*domain.Suggestion, error) {
	snap, err := m.engine.Update(userID, updates, source)
	if err != nil {
		return nil, err
	}

	var topInsight *contextual.Insight
	if len(snap.Insights) > 0 {
		topInsight = snap.Insights[0]
	}

	keys := contextKeys(updates)

	sess, shard := m.ensure(userID)
	now := m.now()
	sess.ContextUpdateCount++
	sess.LastActivity = now

	var reflex *domain.Suggestion
	if sess.Mode.Reflexive() && topInsight != nil && sess.allowSuggestionLocked(now, m.suggestionLimit) {
		reflex = reflexSuggestion(topInsight)
	}
	deferAnalysis := sess.Mode.Anticipatory() && len(keys) > analysisDeferThreshold
	shard.mu.Unlock()

	if deferAnalysis && m.submitter != nil {
		taskID, err := m.submitter.SubmitAnalysis(ctx, userID, keys)
		if err != nil {
			m.logger.Warn("deferred analysis submission failed", "user", userID, "error", err)
		} else {
			m.logger.Debug("deferred analysis scheduled", "user", userID, "task", taskID, "keys", len(keys))
		}
	}

	return reflex, nil
}

// End tears down the user's session: outstanding background tasks are
// cancelled, contextual state is dropped, and the session counters are
// archived fire-and-forget. Returns false if no session was live.
func (m *Manager) End(userID string) bool {
	shard := m.shard(userID)
	shard.mu.Lock()
	sess := m.liveLocked(shard, userID)
	if sess == nil {
		shard.mu.Unlock()
		return false
	}
	delete(shard.sessions, userID)
	record := m.recordOf(sess)
	shard.mu.Unlock()

	if m.submitter != nil {
		cancelled := m.submitter.CancelOwned(userID)
		if cancelled > 0 {
			m.logger.Info("cancelled outstanding tasks", "user", userID, "count", cancelled)
		}
	}
	m.engine.EndUser(userID)
	m.archive(record)

	m.logger.Info("proactive session ended", "user", userID)
	return true
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	total := 0
	now := m.now()
	for _, shard := range m.shards {
		shard.mu.Lock()
		for _, sess := range shard.sessions {
			if !m.idleLocked(sess, now) {
				total++
			}
		}
		shard.mu.Unlock()
	}
	return total
}

// ensure returns the live session for a user, creating one in reactive mode
// if needed. The shard lock is held on return.
func (m *Manager) ensure(userID string) (*Session, *sessionShard) {
	shard := m.shard(userID)
	shard.mu.Lock()

	if sess := m.liveLocked(shard, userID); sess != nil {
		return sess, shard
	}

	now := m.now()
	sess := &Session{
		UserID:       userID,
		Mode:         domain.ModeReactive,
		StartedAt:    now,
		LastActivity: now,
		limiter:      rateWindow{start: now},
	}
	shard.sessions[userID] = sess
	return sess, shard
}

// liveLocked fetches a session, expiring it first if it has gone idle.
func (m *Manager) liveLocked(shard *sessionShard, userID string) *Session {
	sess, ok := shard.sessions[userID]
	if !ok {
		return nil
	}
	if m.idleLocked(sess, m.now()) {
		delete(shard.sessions, userID)
		m.archive(m.recordOf(sess))
		m.logger.Info("proactive session expired idle", "user", userID)
		return nil
	}
	return sess
}

func (m *Manager) idleLocked(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastActivity) > m.idleTimeout
}

func (m *Manager) recordOf(sess *Session) SessionRecord {
	return SessionRecord{
		UserID:             sess.UserID,
		Mode:               sess.Mode,
		StartedAt:          sess.StartedAt,
		EndedAt:            m.now(),
		ContextUpdateCount: sess.ContextUpdateCount,
		SuggestionCount:    sess.SuggestionCount,
		InteractionCount:   sess.InteractionCount,
	}
}

func (m *Manager) copyOf(sess *Session) *Session {
	copied := *sess
	return &copied
}

// archive hands the record to the archiver on a detached goroutine.
func (m *Manager) archive(record SessionRecord) {
	if m.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.archiver.ArchiveSession(ctx, record); err != nil {
			m.logger.Warn("session archival failed", "user", record.UserID, "error", err)
		}
	}()
}

func contextKeys(updates map[contextual.FactorType]map[string]any) []string {
	var keys []string
	for _, kv := range updates {
		for key := range kv {
			keys = append(keys, key)
		}
	}
	return keys
}
