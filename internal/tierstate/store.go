// Package tierstate owns the current tier of a session. Every session gets
// one Store; gates and badges read from it and only SetTier writes to it.
package tierstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"swimdesk/internal/lib/sl"
	"swimdesk/internal/tiers"
)

// ErrNotFound is returned by a Persistence that holds no value for a session.
var ErrNotFound = errors.New("tier selection not found")

// Persistence loads and saves the raw tier identifier of one session.
type Persistence interface {
	LoadTier(ctx context.Context, sessionID string) (string, error)
	SaveTier(ctx context.Context, sessionID, tier string) error
}

// State is a consistent view of a store. Tier is provisional while Loading.
type State struct {
	Tier    tiers.Tier `json:"tier"`
	Loading bool       `json:"loading"`
}

// Store holds the tier of a single session.
type Store struct {
	sessionID string
	persist   Persistence
	log       *slog.Logger

	// writeMu orders writers end to end so the saved value and the last
	// notification always match the in-memory tier.
	writeMu sync.Mutex

	mu          sync.RWMutex
	tier        tiers.Tier
	loading     bool
	done        chan struct{}
	started     bool
	explicit    bool
	generation  int
	nextSubID   int
	subscribers map[int]func(tiers.Tier)
}

// NewStore returns a store in the loading state with a provisional Basic tier.
func NewStore(sessionID string, persist Persistence, log *slog.Logger) *Store {
	return &Store{
		sessionID:   sessionID,
		persist:     persist,
		log:         log.With(slog.String("session_id", sessionID)),
		tier:        tiers.Basic,
		loading:     true,
		done:        make(chan struct{}),
		subscribers: make(map[int]func(tiers.Tier)),
	}
}

// Initialize adopts the persisted tier if it is valid and falls back to Basic
// otherwise. Read errors are logged and swallowed. Only the first call after
// construction or Reset does any work.
func (s *Store) Initialize(ctx context.Context) {
	const op = "tierstate.Store.Initialize"

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	gen := s.generation
	s.mu.Unlock()

	tier := tiers.Basic
	raw, err := s.persist.LoadTier(ctx, s.sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		s.log.Warn("failed to load persisted tier, using default", slog.String("op", op), sl.Err(err))
	default:
		if parsed, ok := tiers.ParseTier(raw); ok {
			tier = parsed
		} else {
			s.log.Warn("ignoring invalid persisted tier", slog.String("op", op), slog.String("value", raw))
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		// Reset while loading; the result belongs to an ended session.
		s.mu.Unlock()
		return
	}
	// A SetTier that raced the load wins over the persisted value.
	if !s.explicit {
		s.tier = tier
	}
	tier = s.tier
	s.loading = false
	close(s.done)
	s.mu.Unlock()

	s.notify(tier)
}

// Done is closed once Initialize has resolved.
func (s *Store) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// CurrentTier returns the in-memory tier. It is provisional while Loading.
func (s *Store) CurrentTier() tiers.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier
}

// Loading reports whether Initialize has not yet resolved.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns tier and loading flag read together.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Tier: s.tier, Loading: s.loading}
}

// SetTier changes and persists the tier. Values outside the enum are ignored
// and false is returned. A failed write is logged; the in-memory value still
// changes. Concurrent calls are applied one at a time.
func (s *Store) SetTier(ctx context.Context, t tiers.Tier) bool {
	const op = "tierstate.Store.SetTier"

	if !t.Valid() {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.tier = t
	s.explicit = true
	s.mu.Unlock()

	if err := s.persist.SaveTier(ctx, s.sessionID, t.String()); err != nil {
		s.log.Error("failed to persist tier", slog.String("op", op), slog.String("tier", t.String()), sl.Err(err))
	}

	s.notify(t)
	return true
}

// SetTierString parses raw and applies it with SetTier. Unknown identifiers
// are a no-op.
func (s *Store) SetTierString(ctx context.Context, raw string) bool {
	t, ok := tiers.ParseTier(raw)
	if !ok {
		return false
	}
	return s.SetTier(ctx, t)
}

// Subscribe registers fn to be called with the new tier after every change.
// Callers must not hold a stale snapshot across updates; they re-read from
// the callback. fn must not call SetTier. The returned func removes the
// subscription.
func (s *Store) Subscribe(fn func(tiers.Tier)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Reset returns the store to its provisional state at session end and drops
// all subscribers. Persisted state is left alone.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tiers.Basic
	s.loading = true
	s.done = make(chan struct{})
	s.started = false
	s.explicit = false
	s.generation++
	s.subscribers = make(map[int]func(tiers.Tier))
}

func (s *Store) notify(t tiers.Tier) {
	s.mu.RLock()
	subs := make([]func(tiers.Tier), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(t)
	}
}
