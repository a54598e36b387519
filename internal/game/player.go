package game

import (
	"fmt"

	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

// Zone labels. Every card id a player owns lives in exactly one of these
// ordered zones.
const (
	ZoneDeck                = "deck"
	ZoneHand                = "hand"
	ZoneReserve             = "reserve"
	ZoneManaPile            = "mana_pile"
	ZoneDiscardPile         = "discard_pile"
	ZoneLandmarks           = "landmarks"
	ZoneExpeditionHero      = "expedition_hero"
	ZoneExpeditionCompanion = "expedition_companion"
)

// zoneNames lists every legal zone label, in display order.
var zoneNames = []string{
	ZoneDeck,
	ZoneHand,
	ZoneReserve,
	ZoneManaPile,
	ZoneDiscardPile,
	ZoneLandmarks,
	ZoneExpeditionHero,
	ZoneExpeditionCompanion,
}

// Player is one participant's state inside a match. The id is the 1-based
// seat assigned at join time.
type Player struct {
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

// cloneCards copies a zone slice. The copy is never nil, so zones always
// serialize as JSON arrays.
func cloneCards(src []string) []string {
	return append(make([]string, 0, len(src)), src...)
}

// NewPlayer creates a participant with the provided starting deck and all
// other zones empty. The seat id is assigned when the match adds the player.
func NewPlayer(name string, deck []string) *Player {
	return &Player{
		Name:                name,
		Deck:                cloneCards(deck),
		Hand:                make([]string, 0),
		Reserve:             make([]string, 0),
		ManaPile:            make([]string, 0),
		DiscardPile:         make([]string, 0),
		Landmarks:           make([]string, 0),
		ExpeditionHero:      make([]string, 0),
		ExpeditionCompanion: make([]string, 0),
	}
}

// zone returns a pointer to the named zone slice, or false for an unknown
// label.
func (p *Player) zone(name string) (*[]string, bool) {
	switch name {
	case ZoneDeck:
		return &p.Deck, true
	case ZoneHand:
		return &p.Hand, true
	case ZoneReserve:
		return &p.Reserve, true
	case ZoneManaPile:
		return &p.ManaPile, true
	case ZoneDiscardPile:
		return &p.DiscardPile, true
	case ZoneLandmarks:
		return &p.Landmarks, true
	case ZoneExpeditionHero:
		return &p.ExpeditionHero, true
	case ZoneExpeditionCompanion:
		return &p.ExpeditionCompanion, true
	default:
		return nil, false
	}
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Deck = cloneCards(p.Deck)
	cp.Hand = cloneCards(p.Hand)
	cp.Reserve = cloneCards(p.Reserve)
	cp.ManaPile = cloneCards(p.ManaPile)
	cp.DiscardPile = cloneCards(p.DiscardPile)
	cp.Landmarks = cloneCards(p.Landmarks)
	cp.ExpeditionHero = cloneCards(p.ExpeditionHero)
	cp.ExpeditionCompanion = cloneCards(p.ExpeditionCompanion)
	cp.AvailableActions = append([]string(nil), p.AvailableActions...)
	cp.EffectsAvailable = append([]string(nil), p.EffectsAvailable...)
	return &cp
}

// CardCount returns the total number of card ids across all zones.
func (p *Player) CardCount() int {
	total := 0
	for _, name := range zoneNames {
		zone, _ := p.zone(name)
		total += len(*zone)
	}
	return total
}

// VerifyZoneIntegrity checks that no card id appears twice, either within a
// zone or across zones.
func (p *Player) VerifyZoneIntegrity() error {
	seen := make(map[string]string, p.CardCount())
	for _, name := range zoneNames {
		zone, _ := p.zone(name)
		for _, card := range *zone {
			if prev, dup := seen[card]; dup {
				return fmt.Errorf("card %s present in both %s and %s", card, prev, name)
			}
			seen[card] = name
		}
	}
	return nil
}

// playableCards lists the card ids a player could act on: everything in hand
// and reserve, in zone order.
func (p *Player) playableCards() []string {
	cards := make([]string, 0, len(p.Hand)+len(p.Reserve))
	cards = append(cards, p.Hand...)
	cards = append(cards, p.Reserve...)
	return cards
}

// record converts the player to its durable form.
func (p *Player) record() snapshot.ParticipantRecord {
	return snapshot.ParticipantRecord{
		ID:                  p.ID,
		Name:                p.Name,
		Deck:                cloneCards(p.Deck),
		Hand:                cloneCards(p.Hand),
		Reserve:             cloneCards(p.Reserve),
		ManaPile:            cloneCards(p.ManaPile),
		DiscardPile:         cloneCards(p.DiscardPile),
		Landmarks:           cloneCards(p.Landmarks),
		ExpeditionHero:      cloneCards(p.ExpeditionHero),
		ExpeditionCompanion: cloneCards(p.ExpeditionCompanion),
		Message:             p.Message,
		AvailableActions:    append([]string(nil), p.AvailableActions...),
		EffectsAvailable:    append([]string(nil), p.EffectsAvailable...),
		HasPassed:           p.HasPassed,
	}
}

// playerFromRecord rebuilds a player from its durable form.
func playerFromRecord(rec snapshot.ParticipantRecord) *Player {
	return &Player{
		ID:                  rec.ID,
		Name:                rec.Name,
		Deck:                cloneCards(rec.Deck),
		Hand:                cloneCards(rec.Hand),
		Reserve:             cloneCards(rec.Reserve),
		ManaPile:            cloneCards(rec.ManaPile),
		DiscardPile:         cloneCards(rec.DiscardPile),
		Landmarks:           cloneCards(rec.Landmarks),
		ExpeditionHero:      cloneCards(rec.ExpeditionHero),
		ExpeditionCompanion: cloneCards(rec.ExpeditionCompanion),
		Message:             rec.Message,
		AvailableActions:    append([]string(nil), rec.AvailableActions...),
		EffectsAvailable:    append([]string(nil), rec.EffectsAvailable...),
		HasPassed:           rec.HasPassed,
	}
}
