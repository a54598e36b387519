package game

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

// Registry holds every live match. Matches are inserted on create and never
// implicitly removed; expiry is an operator policy. Each match carries its
// own lock, so the registry lock only covers the lookup map.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	store   snapshot.Store
	logger  *zap.Logger
}

// NewRegistry creates an empty registry backed by the given snapshot store.
func NewRegistry(store snapshot.Store, logger *zap.Logger) *Registry {
	return &Registry{
		matches: make(map[string]*Match),
		store:   store,
		logger:  logger,
	}
}

// Add registers a match.
func (r *Registry) Add(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID] = m
}

// Get looks a match up by id.
func (r *Registry) Get(matchID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// IDs returns the ids of all live matches.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Restore loads a match from its most recent snapshot and registers it.
// Returns ErrMatchNotFound when no snapshot exists; a corrupt snapshot is
// fatal only for this match.
func (r *Registry) Restore(ctx context.Context, matchID string) (*Match, error) {
	if m, ok := r.Get(matchID); ok {
		return m, nil
	}

	rec, err := r.store.Load(ctx, matchID)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	m, err := MatchFromRecord(rec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// A concurrent restore may have won the race; keep the registered one.
	if existing, ok := r.matches[m.ID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.matches[m.ID] = m
	r.mu.Unlock()

	r.logger.Info("match restored from snapshot",
		zap.String("match_id", m.ID),
		zap.String("phase", m.Phase.String()),
		zap.Int("participants", len(m.Players)),
	)
	return m, nil
}

// RestoreAll loads every persisted match into the registry. A match that
// fails to restore is logged and skipped; the rest of the registry is
// unaffected.
func (r *Registry) RestoreAll(ctx context.Context) error {
	ids, err := r.store.List(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := r.Restore(ctx, id); err != nil {
			r.logger.Warn("failed to restore match",
				zap.String("match_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}
