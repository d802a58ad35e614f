package tierstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"swimdesk/internal/metrics"
)

// RegistryConfig bounds the registry. Capacity is the number of sessions kept
// in memory; LoadWait is how long Get blocks for a fresh store to load;
// LoadTimeout caps the background load itself.
type RegistryConfig struct {
	Capacity    int
	LoadWait    time.Duration
	LoadTimeout time.Duration
}

// Registry maps session ids to their stores. The least recently used session
// is evicted once Capacity is reached, and evicted stores are Reset.
type Registry struct {
	persist Persistence
	log     *slog.Logger
	cfg     RegistryConfig

	mu    sync.Mutex
	cache *lru.Cache[string, *Store]
}

func NewRegistry(persist Persistence, log *slog.Logger, cfg RegistryConfig) (*Registry, error) {
	const op = "tierstate.NewRegistry"

	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}

	cache, err := lru.NewWithEvict[string, *Store](cfg.Capacity, func(_ string, s *Store) {
		s.Reset()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Registry{
		persist: persist,
		log:     log,
		cfg:     cfg,
		cache:   cache,
	}, nil
}

// Get returns the store of sessionID, creating and initialising it on first
// use. A new store is given up to LoadWait to resolve; after that it is
// returned still loading and finishes in the background.
func (r *Registry) Get(ctx context.Context, sessionID string) *Store {
	r.mu.Lock()
	store, ok := r.cache.Get(sessionID)
	if !ok {
		store = NewStore(sessionID, r.persist, r.log)
		r.cache.Add(sessionID, store)
		metrics.ActiveSessions.Set(float64(r.cache.Len()))

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LoadTimeout)
		go func() {
			defer cancel()
			store.Initialize(loadCtx)
		}()
	}
	r.mu.Unlock()

	if r.cfg.LoadWait <= 0 {
		return store
	}

	timer := time.NewTimer(r.cfg.LoadWait)
	defer timer.Stop()
	select {
	case <-store.Done():
	case <-timer.C:
	case <-ctx.Done():
	}
	return store
}

// Remove ends a session. Its store is Reset; the persisted tier is kept so a
// later session with the same id starts from it.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(sessionID)
	metrics.ActiveSessions.Set(float64(r.cache.Len()))
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	return r.cache.Len()
}
