package game

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

const manaDiscardMessage = "Discard 3 cards to mana and/or wait for other players to do so"

// Validation holds the join-time input limits.
type Validation struct {
	MaxNameLength int
	MinDeckSize   int
}

// DefaultValidation mirrors the original client contract: 12-character
// names, non-empty decks.
func DefaultValidation() Validation {
	return Validation{MaxNameLength: 12, MinDeckSize: 1}
}

// NoonEffectsFunc supplies the "at noon" triggered effects for a player.
// The card rules corpus lives outside the engine; the default yields none.
type NoonEffectsFunc func(*Player) []string

// MatchNotification is emitted after every mutating engine operation so
// watch transports can push updated state to clients.
type MatchNotification struct {
	MatchID   string
	Event     string
	Phase     string
	Day       int
	Timestamp time.Time
	State     *snapshot.MatchRecord
}

// NotificationHandler receives match notifications.
type NotificationHandler func(MatchNotification)

// Engine drives the match state machine: it validates participant input,
// executes guarded phase transitions, resolves action batches, and persists
// a snapshot after every mutation.
type Engine struct {
	logger      *zap.Logger
	store       snapshot.Store
	validation  Validation
	noonEffects NoonEffectsFunc
	notify      NotificationHandler
}

// NewEngine creates an engine writing snapshots to the given store.
func NewEngine(store snapshot.Store, validation Validation, logger *zap.Logger) *Engine {
	if validation.MaxNameLength <= 0 {
		validation = DefaultValidation()
	}
	return &Engine{
		logger:     logger,
		store:      store,
		validation: validation,
	}
}

// SetNoonEffects installs the triggered-effect supplier used when the match
// enters noon.
func (e *Engine) SetNoonEffects(fn NoonEffectsFunc) {
	e.noonEffects = fn
}

// SetNotificationHandler installs the handler invoked after mutations.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.notify = handler
}

func (e *Engine) validateParticipant(name string, deck []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidParticipant)
	}
	if len(name) > e.validation.MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidParticipant, e.validation.MaxNameLength)
	}
	if len(deck) < e.validation.MinDeckSize {
		return fmt.Errorf("%w: starting deck is empty", ErrInvalidParticipant)
	}
	return nil
}

// CreateMatch creates a new lobby match with the creator seated as
// participant 1 and persists the initial snapshot.
func (e *Engine) CreateMatch(ctx context.Context, name string, deck []string) (*Match, *Player, error) {
	if err := e.validateParticipant(name, deck); err != nil {
		return nil, nil, err
	}

	m := NewMatch()
	player := NewPlayer(strings.TrimSpace(name), deck)
	if err := m.addPlayer(player); err != nil {
		return nil, nil, err
	}

	if err := e.saveMatch(ctx, m); err != nil {
		return nil, nil, err
	}

	e.logger.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("creator", player.Name),
		zap.Int("deck_size", len(player.Deck)),
	)
	e.emit(m, "match_created")

	return m, player.Clone(), nil
}

// Join seats a new participant with the next sequential id.
func (e *Engine) Join(ctx context.Context, m *Match, name string, deck []string) (*Player, error) {
	if err := e.validateParticipant(name, deck); err != nil {
		return nil, err
	}

	if err := m.Acquire(ctx); err != nil {
		return nil, err
	}
	defer m.Release()

	player := NewPlayer(strings.TrimSpace(name), deck)
	if err := m.addPlayer(player); err != nil {
		return nil, err
	}

	if err := e.saveMatch(ctx, m); err != nil {
		// Seat assignment must not survive a failed persist.
		m.Players = m.Players[:len(m.Players)-1]
		return nil, err
	}

	e.logger.Info("participant joined",
		zap.String("match_id", m.ID),
		zap.Int("participant_id", player.ID),
		zap.String("name", player.Name),
		zap.Int("participants", len(m.Players)),
	)
	e.emit(m, "participant_joined")

	return player.Clone(), nil
}

// StartStatus reports the outcome of a start attempt. A failed guard is a
// waiting condition, not an error.
type StartStatus struct {
	Started bool
	Message string
}

// Start attempts the lobby->setup transition. It is idempotent: repeated
// calls while the guard fails re-report the waiting condition, and calls
// after the game started report it as initialized.
func (e *Engine) Start(ctx context.Context, m *Match) (StartStatus, error) {
	if err := m.Acquire(ctx); err != nil {
		return StartStatus{}, err
	}
	defer m.Release()

	if m.Phase != PhaseLobby {
		return StartStatus{Started: true, Message: "game 'initialized', then do a get_available_actions"}, nil
	}

	if !m.hasStartablePlayerCount() {
		return StartStatus{
			Started: false,
			Message: fmt.Sprintf("waiting for the right number of players (2 or 4), currently %d", len(m.Players)),
		}, nil
	}

	t, _ := transitionFrom(PhaseLobby)
	e.applyTransition(m, t)

	if err := e.saveMatch(ctx, m); err != nil {
		return StartStatus{}, err
	}

	e.logger.Info("match started",
		zap.String("match_id", m.ID),
		zap.Int("participants", len(m.Players)),
		zap.Int("first_player", m.FirstPlayer),
	)
	e.emit(m, "match_started")

	return StartStatus{Started: true, Message: "game 'initialized', then do a get_available_actions"}, nil
}

// Advance runs the guarded-transition driver until a guard fails. The
// lobby->setup edge is excluded: leaving the lobby is the explicit Start
// operation. Returns whether any transition fired.
func (e *Engine) Advance(ctx context.Context, m *Match) (bool, error) {
	if err := m.Acquire(ctx); err != nil {
		return false, err
	}
	defer m.Release()

	moved := e.advanceLocked(m)
	if !moved {
		return false, nil
	}

	if err := e.saveMatch(ctx, m); err != nil {
		return true, err
	}
	e.emit(m, "phase_advanced")
	return true, nil
}

func (e *Engine) advanceLocked(m *Match) bool {
	moved := false
	for steps := 0; steps < 2*len(matchTransitions); steps++ {
		if m.Phase == PhaseLobby {
			break
		}
		t, ok := transitionFrom(m.Phase)
		if !ok {
			break
		}
		if t.guard != nil && !t.guard(m) {
			break
		}
		e.applyTransition(m, t)
		moved = true
	}
	return moved
}

func (e *Engine) applyTransition(m *Match, t transition) {
	from := m.Phase
	m.Phase = t.to
	if t.entry != nil {
		t.entry(e, m)
	}
	e.logger.Debug("phase transition",
		zap.String("match_id", m.ID),
		zap.String("from", from.String()),
		zap.String("to", t.to.String()),
		zap.Int("day", m.Day),
	)
}

// AvailableActions returns the participant's record with the currently
// legal action list filled in. It is side-effect-free; the transport layer
// calls Advance first so a met guard has already moved the phase.
func (e *Engine) AvailableActions(ctx context.Context, m *Match, participantID int) (*Player, error) {
	if err := m.Acquire(ctx); err != nil {
		return nil, err
	}
	defer m.Release()

	p, err := m.playerByID(participantID)
	if err != nil {
		return nil, err
	}

	view := p.Clone()
	switch m.Phase {
	case PhaseLobby:
		view.AvailableActions = nil
		view.Message = fmt.Sprintf("waiting for the right number of players (2 or 4), currently %d", len(m.Players))
	case PhaseSetup:
		// No pass while the mana requirement is unmet.
		view.AvailableActions = p.playableCards()
	case PhaseNoon:
		view.AvailableActions = append(append([]string(nil), p.EffectsAvailable...), ActionPass)
	case PhaseAfternoon:
		view.AvailableActions = append(p.playableCards(), ActionPass)
	default:
		view.AvailableActions = nil
	}
	return view, nil
}

// SubmitActions resolves the batch atomically against the participant's
// zones, replaces the stored record with the mutated copy, and persists the
// match before returning.
func (e *Engine) SubmitActions(ctx context.Context, m *Match, participantID int, batch []Action) (*Player, error) {
	if err := m.Acquire(ctx); err != nil {
		return nil, err
	}
	defer m.Release()

	p, err := m.playerByID(participantID)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveActions(m.Phase, p, batch)
	if err != nil {
		return nil, err
	}
	resolved.Message = ""

	m.Players[participantID-1] = resolved

	if err := e.saveMatch(ctx, m); err != nil {
		m.Players[participantID-1] = p
		return nil, err
	}

	e.logger.Info("actions resolved",
		zap.String("match_id", m.ID),
		zap.Int("participant_id", participantID),
		zap.Int("actions", len(batch)),
		zap.String("phase", m.Phase.String()),
	)
	e.emit(m, "actions_resolved")

	return resolved.Clone(), nil
}

// entry actions ------------------------------------------------------------

// enterSetup runs when the lobby empties into setup: pick a random first
// player, shuffle every deck once, deal the opening hands.
func (e *Engine) enterSetup(m *Match) {
	m.FirstPlayer = rand.Intn(len(m.Players))

	for _, p := range m.Players {
		rand.Shuffle(len(p.Deck), func(i, j int) {
			p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i]
		})
	}

	for _, p := range m.Players {
		n := openingHandSize
		if n > len(p.Deck) {
			n = len(p.Deck)
		}
		p.Hand = append(p.Hand, p.Deck[:n]...)
		p.Deck = p.Deck[n:]
		p.Message = manaDiscardMessage
	}
}

// enterNoon draws the morning cards and gathers each participant's "at
// noon" triggers, starting from the first player in seating order.
func (e *Engine) enterNoon(m *Match) {
	for _, p := range m.Players {
		n := morningDrawCount
		if n > len(p.Deck) {
			n = len(p.Deck)
		}
		p.Hand = append(p.Hand, p.Deck[:n]...)
		p.Deck = p.Deck[n:]
		p.Message = ""
	}

	for _, seat := range m.seatOrder() {
		p := m.Players[seat]
		if e.noonEffects != nil {
			p.EffectsAvailable = e.noonEffects(p)
		} else {
			p.EffectsAvailable = nil
		}
	}
}

// enterDusk computes the expedition-advance comparison. Card statistics are
// supplied by the rules corpus outside the engine, so the comparison here
// ranks expeditions by committed card count.
func (e *Engine) enterDusk(m *Match) {
	best := -1
	bestSeats := make([]int, 0, len(m.Players))
	for i, p := range m.Players {
		size := len(p.ExpeditionHero) + len(p.ExpeditionCompanion)
		if size > best {
			best = size
			bestSeats = []int{i}
		} else if size == best {
			bestSeats = append(bestSeats, i)
		}
	}

	for i, p := range m.Players {
		if best > 0 && len(bestSeats) == 1 && bestSeats[0] == i {
			p.Message = "Your expedition advances"
		} else {
			p.Message = "Your expedition holds"
		}
	}
}

// enterNight rests the expeditions back to reserve, then discards reserve
// and landmarks down to their caps.
func (e *Engine) enterNight(m *Match) {
	for _, p := range m.Players {
		p.Reserve = append(p.Reserve, p.ExpeditionHero...)
		p.Reserve = append(p.Reserve, p.ExpeditionCompanion...)
		p.ExpeditionHero = p.ExpeditionHero[:0]
		p.ExpeditionCompanion = p.ExpeditionCompanion[:0]

		if len(p.Reserve) > reserveCleanupCap {
			p.DiscardPile = append(p.DiscardPile, p.Reserve[reserveCleanupCap:]...)
			p.Reserve = p.Reserve[:reserveCleanupCap]
		}
		if len(p.Landmarks) > landmarkCleanupCap {
			p.DiscardPile = append(p.DiscardPile, p.Landmarks[landmarkCleanupCap:]...)
			p.Landmarks = p.Landmarks[:landmarkCleanupCap]
		}
	}
}

// enterNextDay starts the next round: the counter increments, the first
// player marker rotates one seat, and per-round flags reset.
func (e *Engine) enterNextDay(m *Match) {
	m.Day++
	m.FirstPlayer = (m.FirstPlayer + 1) % len(m.Players)
	for _, p := range m.Players {
		p.HasPassed = false
		p.EffectsAvailable = nil
		p.Message = fmt.Sprintf("Day %d begins", m.Day)
	}
}

// persistence --------------------------------------------------------------

func (e *Engine) saveMatch(ctx context.Context, m *Match) error {
	if err := e.store.Save(ctx, m.Record()); err != nil {
		e.logger.Error("failed to persist match",
			zap.String("match_id", m.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to persist match %s: %w", m.ID, err)
	}
	return nil
}

func (e *Engine) emit(m *Match, event string) {
	if e.notify == nil {
		return
	}
	e.notify(MatchNotification{
		MatchID:   m.ID,
		Event:     event,
		Phase:     m.Phase.String(),
		Day:       m.Day,
		Timestamp: time.Now(),
		State:     m.Record(),
	})
}
