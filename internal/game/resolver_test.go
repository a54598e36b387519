package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandPlayer() *Player {
	p := NewPlayer("Alice", nil)
	p.ID = 1
	p.Hand = []string{"c1", "c2", "c3", "c4"}
	return p
}

func TestResolveMoveCard(t *testing.T) {
	p := testHandPlayer()

	resolved, err := resolveActions(PhaseSetup, p, []Action{
		{Type: ActionMoveCard, Card: "c2", From: ZoneHand, To: ZoneManaPile},
	})
	require.NoError(t, err)

	// Order of the remaining hand is preserved, card appended to mana.
	assert.Equal(t, []string{"c1", "c3", "c4"}, resolved.Hand)
	assert.Equal(t, []string{"c2"}, resolved.ManaPile)

	// The input player is untouched.
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, p.Hand)
}

func TestResolveBatchOrdered(t *testing.T) {
	p := testHandPlayer()

	resolved, err := resolveActions(PhaseSetup, p, []Action{
		{Type: ActionMoveCard, Card: "c1", From: ZoneHand, To: ZoneManaPile},
		{Type: ActionMoveCard, Card: "c3", From: ZoneHand, To: ZoneManaPile},
		{Type: ActionMoveCard, Card: "c2", From: ZoneHand, To: ZoneManaPile},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c2"}, resolved.ManaPile)
	assert.Equal(t, []string{"c4"}, resolved.Hand)
}

func TestResolveBatchAtomic(t *testing.T) {
	p := testHandPlayer()

	// Second intent is illegal; the legal first intent must not stick.
	_, err := resolveActions(PhaseSetup, p, []Action{
		{Type: ActionMoveCard, Card: "c1", From: ZoneHand, To: ZoneManaPile},
		{Type: ActionMoveCard, Card: "missing", From: ZoneHand, To: ZoneManaPile},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMove))
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "action 2")

	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, p.Hand)
	assert.Empty(t, p.ManaPile)
}

func TestResolveInvalidZone(t *testing.T) {
	p := testHandPlayer()

	_, err := resolveActions(PhaseSetup, p, []Action{
		{Type: ActionMoveCard, Card: "c1", From: ZoneHand, To: "battlefield"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidZone))

	_, err = resolveActions(PhaseSetup, p, []Action{
		{Type: ActionMoveCard, Card: "c1", From: "library", To: ZoneManaPile},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidZone))
}

func TestResolveUnknownActionType(t *testing.T) {
	p := testHandPlayer()

	_, err := resolveActions(PhaseSetup, p, []Action{{Type: "draw_card"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMove))
}

func TestResolvePassByPhase(t *testing.T) {
	p := testHandPlayer()
	p.EffectsAvailable = []string{"rally", "scout"}

	// In noon a pass clears the pending triggered effects.
	resolved, err := resolveActions(PhaseNoon, p, []Action{{Type: ActionPass}})
	require.NoError(t, err)
	assert.Empty(t, resolved.EffectsAvailable)
	assert.False(t, resolved.HasPassed)

	// In the afternoon it marks the player done for the round.
	resolved, err = resolveActions(PhaseAfternoon, p, []Action{{Type: ActionPass}})
	require.NoError(t, err)
	assert.True(t, resolved.HasPassed)
	assert.Equal(t, []string{"rally", "scout"}, resolved.EffectsAvailable)
}

func TestResolveCardNeverDuplicated(t *testing.T) {
	p := testHandPlayer()

	resolved, err := resolveActions(PhaseAfternoon, p, []Action{
		{Type: ActionMoveCard, Card: "c1", From: ZoneHand, To: ZoneReserve},
		{Type: ActionMoveCard, Card: "c1", From: ZoneReserve, To: ZoneExpeditionHero},
	})
	require.NoError(t, err)
	require.NoError(t, resolved.VerifyZoneIntegrity())
	assert.Equal(t, []string{"c1"}, resolved.ExpeditionHero)
	assert.Empty(t, resolved.Reserve)
}
