package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileStore keeps one JSON file per match under a games directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed and returns a file-backed store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(matchID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", matchID))
}

// Save writes the record to <dir>/<id>.json via a temp file and rename so a
// crashed write never leaves a truncated snapshot behind.
func (s *FileStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, record.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path(record.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("saved match snapshot",
			zap.String("match_id", record.ID),
			zap.String("phase", record.Phase),
			zap.Int("participants", len(record.Participants)),
		)
	}
	return nil
}

// Load reads the most recent snapshot for a match id.
func (s *FileStore) Load(ctx context.Context, matchID string) (*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(matchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var record MatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", matchID, err)
	}
	return &record, nil
}

// List returns the match ids that currently have a snapshot on disk.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
