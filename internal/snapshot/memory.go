package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Used by tests and for
// ephemeral deployments where recovery across restarts is not needed.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Save stores an encoded copy so later mutations of the record do not leak
// into the stored snapshot.
func (s *MemoryStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = data
	return nil
}

// Load returns the stored snapshot for a match id.
func (s *MemoryStore) Load(ctx context.Context, matchID string) (*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.records[matchID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var record MatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", matchID, err)
	}
	return &record, nil
}

// List returns all stored match ids.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}
