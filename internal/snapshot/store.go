package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists for a match id.
var ErrNotFound = errors.New("match snapshot not found")

// ParticipantRecord is the durable form of one participant's state.
// Zone slices are ordered; a card id appears in exactly one zone.
type ParticipantRecord struct {
	ID                  int      `json:"id"`
	Name                string   `json:"name"`
	Deck                []string `json:"deck"`
	Hand                []string `json:"hand"`
	Reserve             []string `json:"reserve"`
	ManaPile            []string `json:"mana_pile"`
	DiscardPile         []string `json:"discard_pile"`
	Landmarks           []string `json:"landmarks"`
	ExpeditionHero      []string `json:"expedition_hero"`
	ExpeditionCompanion []string `json:"expedition_companion"`
	Message             string   `json:"message,omitempty"`
	AvailableActions    []string `json:"available_actions,omitempty"`
	EffectsAvailable    []string `json:"effects_available,omitempty"`
	HasPassed           bool     `json:"has_passed"`
}

// MatchRecord is the durable form of a full match: every field needed to
// reconstruct the match after a restart.
type MatchRecord struct {
	ID           string              `json:"id"`
	Phase        string              `json:"phase"`
	Day          int                 `json:"day"`
	FirstPlayer  int                 `json:"first_player"`
	Winner       int                 `json:"winner"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Participants []ParticipantRecord `json:"participants"`
}

// Store persists match snapshots keyed by match id. Save overwrites any
// prior snapshot for the same id.
type Store interface {
	Save(ctx context.Context, record *MatchRecord) error
	Load(ctx context.Context, matchID string) (*MatchRecord, error)
	List(ctx context.Context) ([]string, error)
}
