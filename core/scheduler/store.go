package scheduler

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/embermind/aura/core/domain"
	_ "modernc.org/sqlite"
)

// =============================================================================
// Task Store - Tiered Background Task Tracking
// =============================================================================
//
// TaskStore keeps live tasks in an authoritative in-memory map so status
// transitions can be compare-and-swap checked under one lock. Terminal
// tasks move to tiered archive storage:
// - Hot (L1): Ristretto cache for fast lookups of recently finished tasks
// - Cold (L2): SQLite for durable history and cleanup queries

const (
	// DefaultTaskStorePath is the default SQLite database location.
	DefaultTaskStorePath = ".aura/tasks.db"

	defaultNumCounters = 1e5
	defaultMaxCost     = 1e7
	defaultBufferItems = 64
)

// TaskStoreConfig configures the tiered task store.
type TaskStoreConfig struct {
	// DBPath is the SQLite path (empty = DefaultTaskStorePath).
	DBPath string

	// Ristretto sizing.
	NumCounters int64
	MaxCost     int64
	BufferItems int64

	// ArchiveTTL bounds how long terminal tasks stay queryable in cold
	// storage (0 = forever).
	ArchiveTTL time.Duration
}

// DefaultTaskStoreConfig returns sensible defaults.
func DefaultTaskStoreConfig() TaskStoreConfig {
	return TaskStoreConfig{
		DBPath:      DefaultTaskStorePath,
		NumCounters: int64(defaultNumCounters),
		MaxCost:     int64(defaultMaxCost),
		BufferItems: int64(defaultBufferItems),
		ArchiveTTL:  7 * 24 * time.Hour,
	}
}

// TaskStore is the shared task state touched by submitters and the worker
// pool. Every status mutation goes through cas so two consumers can never
// double-complete one task.
type TaskStore struct {
	mu     sync.Mutex
	active map[string]*BackgroundTask

	cache *ristretto.Cache
	db    *sql.DB

	config TaskStoreConfig
}

// NewTaskStore creates the store and its backing archive.
func NewTaskStore(cfg TaskStoreConfig) (*TaskStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultTaskStorePath
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = int64(defaultNumCounters)
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = int64(defaultMaxCost)
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = int64(defaultBufferItems)
	}

	store := &TaskStore{
		active: make(map[string]*BackgroundTask),
		config: cfg,
	}

	if err := store.initSQLite(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("task store: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		store.db.Close()
		return nil, fmt.Errorf("task store cache: %w", err)
	}
	store.cache = cache

	return store, nil
}

func (s *TaskStore) initSQLite(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS task_archive (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		owner TEXT,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL,
		max_retries INTEGER NOT NULL,
		progress_pct REAL NOT NULL,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		archived_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_task_owner ON task_archive(owner);
	CREATE INDEX IF NOT EXISTS idx_task_status ON task_archive(status);
	CREATE INDEX IF NOT EXISTS idx_task_archived ON task_archive(archived_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	return nil
}

// Put registers a new task. Fails if the id is already live.
func (s *TaskStore) Put(task *BackgroundTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.active[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.active[task.ID] = task
	return nil
}

// Get returns a copy of a task: live map first, then the archive tiers.
func (s *TaskStore) Get(id string) (*BackgroundTask, bool) {
	s.mu.Lock()
	if task, ok := s.active[id]; ok {
		copied := task.clone()
		s.mu.Unlock()
		return copied, true
	}
	s.mu.Unlock()

	if val, ok := s.cache.Get(id); ok {
		if task, ok := val.(*BackgroundTask); ok {
			return task.clone(), true
		}
	}

	task, err := s.getFromCold(id)
	if err != nil || task == nil {
		return nil, false
	}
	s.cache.Set(id, task, archiveCost(task))
	return task.clone(), true
}

// CAS transitions a task's status only from one of the expected prior
// states, applying mutate under the store lock. A terminal task moves to
// the archive tiers. Returns the post-transition copy and whether the swap
// happened.
func (s *TaskStore) CAS(id string, from []TaskStatus, to TaskStatus, mutate func(*BackgroundTask)) (*BackgroundTask, bool) {
	s.mu.Lock()
	task, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}

	allowed := false
	for _, f := range from {
		if task.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		copied := task.clone()
		s.mu.Unlock()
		return copied, false
	}

	task.Status = to
	if mutate != nil {
		mutate(task)
	}
	copied := task.clone()

	if to.Terminal() {
		delete(s.active, id)
	}
	s.mu.Unlock()

	if to.Terminal() {
		s.cache.Set(id, copied.clone(), archiveCost(copied))
		// Ristretto buffers writes; flush so a Get racing the transition
		// still sees the task (with its Result, which cold storage drops).
		s.cache.Wait()
		go s.archive(copied.clone())
	}
	return copied, true
}

// Update applies a field-level mutation to a live task without changing
// its status.
func (s *TaskStore) Update(id string, mutate func(*BackgroundTask)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.active[id]
	if !ok {
		return false
	}
	mutate(task)
	return true
}

// Owned returns copies of all live tasks for an owner.
func (s *TaskStore) Owned(owner string) []*BackgroundTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*BackgroundTask
	for _, task := range s.active {
		if task.Owner == owner {
			out = append(out, task.clone())
		}
	}
	return out
}

// ActiveCount returns the number of live tasks.
func (s *TaskStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// archive writes a terminal task to cold storage.
func (s *TaskStore) archive(task *BackgroundTask) {
	_, _ = s.db.Exec(`
		INSERT OR REPLACE INTO task_archive
		(id, name, type, owner, priority, status, retry_count, max_retries,
		 progress_pct, error, created_at, started_at, completed_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.Name, task.Type, task.Owner, string(task.Priority),
		string(task.Status), task.RetryCount, task.MaxRetries,
		task.ProgressPct, task.Error, task.CreatedAt, task.StartedAt,
		task.CompletedAt, time.Now(),
	)
}

func (s *TaskStore) getFromCold(id string) (*BackgroundTask, error) {
	row := s.db.QueryRow(`
		SELECT id, name, type, owner, priority, status, retry_count,
		       max_retries, progress_pct, error, created_at, started_at, completed_at
		FROM task_archive WHERE id = ?
	`, id)

	var task BackgroundTask
	var owner, errStr sql.NullString
	var priority, status string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID, &task.Name, &task.Type, &owner, &priority, &status,
		&task.RetryCount, &task.MaxRetries, &task.ProgressPct, &errStr,
		&task.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.Status = TaskStatus(status)
	if owner.Valid {
		task.Owner = owner.String
	}
	if errStr.Valid {
		task.Error = errStr.String
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

// Cleanup removes archived tasks older than the cutoff. Returns the number
// of rows removed.
func (s *TaskStore) Cleanup(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.Exec(`
		DELETE FROM task_archive WHERE archived_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close shuts both archive tiers.
func (s *TaskStore) Close() error {
	s.cache.Close()
	return s.db.Close()
}

func archiveCost(task *BackgroundTask) int64 {
	cost := int64(300)
	cost += int64(len(task.ID) + len(task.Name) + len(task.Type) + len(task.Owner) + len(task.Error))
	return cost
}
