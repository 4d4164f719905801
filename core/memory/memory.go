package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Interaction Memory Store
// =============================================================================

// DefaultCacheSize bounds how many interactions stay in memory for fast
// retrieval after a search hit.
const DefaultCacheSize = 10000

// Interaction is one stored exchange between a user and the assistant.
type Interaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Domain    string    `json:"domain,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// clone copies the interaction so cache entries never alias caller memory.
func (i *Interaction) clone() *Interaction {
	copied := *i
	if len(i.Keywords) > 0 {
		copied.Keywords = append([]string(nil), i.Keywords...)
	}
	return &copied
}

// Store keeps past interactions searchable and user preferences readable.
// Full-text retrieval goes through a Bleve index; the hydrated interaction
// structs live in a bounded LRU cache keyed by id.
type Store struct {
	index bleve.Index

	mu    sync.RWMutex
	cache *lru.Cache[string, *Interaction]

	prefMu      sync.RWMutex
	preferences map[string]map[string]string

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Config configures the store.
type Config struct {
	// Path is the on-disk Bleve index location. Empty keeps the index in
	// memory only.
	Path string

	// CacheSize bounds the interaction cache (default DefaultCacheSize).
	CacheSize int
}

// NewStore opens or creates the memory store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	var index bleve.Index
	var err error
	if cfg.Path == "" {
		index, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		index, err = bleve.Open(cfg.Path)
		if err != nil {
			index, err = bleve.New(cfg.Path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("memory store index: %w", err)
	}

	s := &Store{
		index:       index,
		preferences: make(map[string]map[string]string),
	}
	cache, _ := lru.NewWithEvict[string, *Interaction](cfg.CacheSize, func(key string, _ *Interaction) {
		s.evictions.Add(1)
	})
	s.cache = cache

	return s, nil
}

// StoreInteraction indexes one exchange. A zero ID gets one generated; a
// zero timestamp gets stamped now.
func (s *Store) StoreInteraction(ctx context.Context, interaction *Interaction) error {
	if interaction == nil {
		return fmt.Errorf("store interaction: nil interaction")
	}
	if interaction.UserID == "" {
		return fmt.Errorf("store interaction: empty user id")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if interaction.ID == "" {
		interaction.ID = fmt.Sprintf("mem_%s", uuid.New().String()[:8])
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now()
	}

	doc := map[string]any{
		"user_id":   strings.ToLower(interaction.UserID),
		"query":     interaction.Query,
		"response":  interaction.Response,
		"domain":    interaction.Domain,
		"keywords":  strings.Join(interaction.Keywords, " "),
		"timestamp": interaction.Timestamp.Format(time.RFC3339),
	}
	if err := s.index.Index(interaction.ID, doc); err != nil {
		return fmt.Errorf("index interaction %s: %w", interaction.ID, err)
	}

	s.mu.Lock()
	s.cache.Add(interaction.ID, interaction.clone())
	s.mu.Unlock()
	return nil
}

// RelevantMemories searches one user's past interactions for the query
// text, most relevant first. Returned interactions are copies.
func (s *Store) RelevantMemories(ctx context.Context, userID, queryStr string, limit int) ([]*Interaction, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequest(s.buildQuery(userID, queryStr))
	req.Size = limit

	result, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	memories := make([]*Interaction, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if interaction, ok := s.cache.Get(hit.ID); ok {
			s.hits.Add(1)
			memories = append(memories, interaction.clone())
		} else {
			s.misses.Add(1)
		}
	}
	return memories, nil
}

func (s *Store) buildQuery(userID, queryStr string) query.Query {
	userQuery := bleve.NewTermQuery(strings.ToLower(userID))
	userQuery.SetField("user_id")

	if queryStr == "" {
		return userQuery
	}

	textQuery := bleve.NewMatchQuery(queryStr)
	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(userQuery, textQuery)
	return boolQuery
}

// SetPreference records one durable user preference.
func (s *Store) SetPreference(userID, key, value string) {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	prefs, ok := s.preferences[userID]
	if !ok {
		prefs = make(map[string]string)
		s.preferences[userID] = prefs
	}
	prefs[key] = value
}

// Preferences returns a copy of one user's preference map.
func (s *Store) Preferences(userID string) map[string]string {
	s.prefMu.RLock()
	defer s.prefMu.RUnlock()

	out := make(map[string]string, len(s.preferences[userID]))
	for k, v := range s.preferences[userID] {
		out[k] = v
	}
	return out
}

// Stats reports cache behavior.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Stats snapshots the cache counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	size := s.cache.Len()
	s.mu.RUnlock()

	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Size:      size,
	}
}

// Close releases the index.
func (s *Store) Close() error {
	return s.index.Close()
}
