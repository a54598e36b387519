package game

import "fmt"

// Action types a participant may submit.
const (
	ActionMoveCard = "move_card"
	ActionPass     = "pass"
)

// Action is one intent inside a submitted batch. For move_card, Card must
// currently sit in the From zone and is appended to the end of To.
type Action struct {
	Type string `json:"action"`
	Card string `json:"card,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (a Action) String() string {
	if a.Type == ActionMoveCard {
		return fmt.Sprintf("move_card %s %s->%s", a.Card, a.From, a.To)
	}
	return a.Type
}

// resolveActions applies an ordered batch to a scratch copy of the player
// and returns the mutated copy. The batch is atomic: if any intent is
// illegal the original player is left untouched and an error naming the
// offending intent is returned.
func resolveActions(phase Phase, player *Player, batch []Action) (*Player, error) {
	scratch := player.Clone()

	for i, action := range batch {
		if err := applyAction(phase, scratch, action); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, action, err)
		}
	}
	return scratch, nil
}

func applyAction(phase Phase, p *Player, action Action) error {
	switch action.Type {
	case ActionMoveCard:
		return moveCard(p, action)
	case ActionPass:
		// In noon the pass clears the pending triggered effects; from the
		// afternoon on it marks the player done for the round.
		if phase == PhaseNoon {
			p.EffectsAvailable = nil
		} else {
			p.HasPassed = true
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidMove, action.Type)
	}
}

// moveCard removes the card from the source zone, preserving the order of
// the remaining cards, and appends it to the destination zone.
func moveCard(p *Player, action Action) error {
	source, ok := p.zone(action.From)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidZone, action.From)
	}
	dest, ok := p.zone(action.To)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidZone, action.To)
	}

	idx := -1
	for i, card := range *source {
		if card == action.Card {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: card %s not in %s", ErrInvalidMove, action.Card, action.From)
	}

	*source = append((*source)[:idx], (*source)[idx+1:]...)
	*dest = append(*dest, action.Card)
	return nil
}
