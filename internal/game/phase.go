package game

import "fmt"

// Phase represents the day phases a match cycles through.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseSetup
	PhaseNoon
	PhaseAfternoon
	PhaseDusk
	PhaseNight
)

var phaseNames = map[Phase]string{
	PhaseLobby:     "lobby",
	PhaseSetup:     "setup",
	PhaseNoon:      "noon",
	PhaseAfternoon: "afternoon",
	PhaseDusk:      "dusk",
	PhaseNight:     "night",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// PhaseFromName resolves a persisted phase name back to its Phase value.
func PhaseFromName(name string) (Phase, bool) {
	for phase, n := range phaseNames {
		if n == name {
			return phase, true
		}
	}
	return PhaseLobby, false
}

// transition describes one edge of the match state machine: the guard must
// hold before the match moves from "from" to "to"; entry runs after the
// move. A nil guard is unconditional.
type transition struct {
	from  Phase
	to    Phase
	guard func(*Match) bool
	entry func(*Engine, *Match)
}

// matchTransitions is the declarative transition table, one outgoing edge
// per phase, executed by the engine's advance driver.
var matchTransitions = []transition{
	{
		from:  PhaseLobby,
		to:    PhaseSetup,
		guard: (*Match).hasStartablePlayerCount,
		entry: (*Engine).enterSetup,
	},
	{
		from:  PhaseSetup,
		to:    PhaseNoon,
		guard: (*Match).allPlayersManaReady,
		entry: (*Engine).enterNoon,
	},
	{
		from:  PhaseNoon,
		to:    PhaseAfternoon,
		guard: (*Match).allNoonEffectsDone,
	},
	{
		from:  PhaseAfternoon,
		to:    PhaseDusk,
		guard: (*Match).allPlayersPassed,
		entry: (*Engine).enterDusk,
	},
	{
		from:  PhaseDusk,
		to:    PhaseNight,
		entry: (*Engine).enterNight,
	},
	{
		from:  PhaseNight,
		to:    PhaseSetup,
		entry: (*Engine).enterNextDay,
	},
}

// transitionFrom returns the outgoing transition for a phase.
func transitionFrom(phase Phase) (transition, bool) {
	for _, t := range matchTransitions {
		if t.from == phase {
			return t, true
		}
	}
	return transition{}, false
}
