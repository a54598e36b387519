package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

// Game rule constants.
const (
	maxPlayers         = 4
	openingHandSize    = 6
	manaRequirement    = 3
	morningDrawCount   = 2
	reserveCleanupCap  = 2
	landmarkCleanupCap = 2
)

// Match is one running game: the ordered participants, the current phase
// and round counter, and a lock serializing every operation that touches it.
type Match struct {
	ID          string
	CreatedAt   time.Time
	Phase       Phase
	Day         int
	FirstPlayer int // seat index into Players, 0-based
	Winner      int // participant id, 0 until the game ends
	Players     []*Player

	// lock is a semaphore-style mutex so acquisition can honor a context
	// deadline instead of blocking indefinitely behind a stuck request.
	lock chan struct{}
}

// NewMatch creates an empty lobby match. The id embeds the creation
// timestamp for traceability.
func NewMatch() *Match {
	now := time.Now()
	return &Match{
		ID:        fmt.Sprintf("%s_%s", uuid.New().String(), now.Format("20060102T150405")),
		CreatedAt: now,
		Phase:     PhaseLobby,
		Day:       1,
		Players:   make([]*Player, 0, maxPlayers),
		lock:      make(chan struct{}, 1),
	}
}

// Acquire takes the match lock, giving up when the context expires.
func (m *Match) Acquire(ctx context.Context) error {
	select {
	case m.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// Release returns the match lock.
func (m *Match) Release() {
	<-m.lock
}

// addPlayer appends a participant with the next sequential seat id. Caller
// holds the match lock.
func (m *Match) addPlayer(p *Player) error {
	if m.Phase != PhaseLobby {
		return ErrMatchAlreadyStarted
	}
	if len(m.Players) >= maxPlayers {
		return ErrMatchFull
	}
	p.ID = len(m.Players) + 1
	m.Players = append(m.Players, p)
	return nil
}

// playerByID returns the participant with the given seat id.
func (m *Match) playerByID(id int) (*Player, error) {
	if id < 1 || id > len(m.Players) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownParticipant, id)
	}
	return m.Players[id-1], nil
}

// seatOrder returns seat indexes starting from the first player and wrapping
// around the table.
func (m *Match) seatOrder() []int {
	order := make([]int, 0, len(m.Players))
	for i := 0; i < len(m.Players); i++ {
		order = append(order, (m.FirstPlayer+i)%len(m.Players))
	}
	return order
}

// hasStartablePlayerCount guards lobby->setup: the game needs exactly 2 or
// 4 participants.
func (m *Match) hasStartablePlayerCount() bool {
	return len(m.Players) == 2 || len(m.Players) == 4
}

// allPlayersManaReady guards setup->noon. On day 1 every participant must
// have discarded exactly 3 cards to mana; later days have no mana gate.
func (m *Match) allPlayersManaReady() bool {
	if m.Day > 1 {
		return true
	}
	for _, p := range m.Players {
		if len(p.ManaPile) != manaRequirement {
			return false
		}
	}
	return true
}

// allNoonEffectsDone guards noon->afternoon: every participant's triggered
// effect queue must be empty (resolved or passed).
func (m *Match) allNoonEffectsDone() bool {
	for _, p := range m.Players {
		if len(p.EffectsAvailable) > 0 {
			return false
		}
	}
	return true
}

// allPlayersPassed guards afternoon->dusk.
func (m *Match) allPlayersPassed() bool {
	for _, p := range m.Players {
		if !p.HasPassed {
			return false
		}
	}
	return true
}

// Record converts the full match state to its durable form. Caller holds
// the match lock.
func (m *Match) Record() *snapshot.MatchRecord {
	participants := make([]snapshot.ParticipantRecord, 0, len(m.Players))
	for _, p := range m.Players {
		participants = append(participants, p.record())
	}
	return &snapshot.MatchRecord{
		ID:           m.ID,
		Phase:        m.Phase.String(),
		Day:          m.Day,
		FirstPlayer:  m.FirstPlayer,
		Winner:       m.Winner,
		CreatedAt:    m.CreatedAt,
		Participants: participants,
	}
}

// MatchFromRecord rebuilds a match from a snapshot.
func MatchFromRecord(rec *snapshot.MatchRecord) (*Match, error) {
	phase, ok := PhaseFromName(rec.Phase)
	if !ok {
		return nil, fmt.Errorf("snapshot for %s has unknown phase %q", rec.ID, rec.Phase)
	}

	players := make([]*Player, 0, len(rec.Participants))
	for _, pr := range rec.Participants {
		players = append(players, playerFromRecord(pr))
	}

	return &Match{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt,
		Phase:       phase,
		Day:         rec.Day,
		FirstPlayer: rec.FirstPlayer,
		Winner:      rec.Winner,
		Players:     players,
		lock:        make(chan struct{}, 1),
	}, nil
}
