package state

import "fmt"

// Who identifies one of the two players by seat.
type Who int

const (
	// NoOne is used for events and viewers that belong to neither seat.
	NoOne     Who = -1
	PlayerOne Who = 0
	PlayerTwo Who = 1
)

// Opp returns the other seat.
func (w Who) Opp() Who {
	switch w {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return NoOne
}

// Valid reports whether w is a seat.
func (w Who) Valid() bool {
	return w == PlayerOne || w == PlayerTwo
}

func (w Who) String() string {
	switch w {
	case PlayerOne:
		return "P1"
	case PlayerTwo:
		return "P2"
	}
	return "NOONE"
}

// Seats lists both seats starting with first.
func Seats(first Who) [2]Who {
	if first == PlayerTwo {
		return [2]Who{PlayerTwo, PlayerOne}
	}
	return [2]Who{PlayerOne, PlayerTwo}
}

// Phase is a node of the game's phase state machine.
type Phase int

const (
	PhaseInitHands Phase = iota
	PhaseInitActives
	PhaseRoll
	PhaseAction
	PhaseEnd
	PhaseGameEnd
)

var phaseNames = map[Phase]string{
	PhaseInitHands:   "INIT_HANDS",
	PhaseInitActives: "INIT_ACTIVES",
	PhaseRoll:        "ROLL",
	PhaseAction:      "ACTION",
	PhaseEnd:         "END",
	PhaseGameEnd:     "GAME_END",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// PlayerFlag names one of the per-player boolean flags.
type PlayerFlag int

const (
	FlagDeclaredEnd PlayerFlag = iota
	FlagLegendUsed
	FlagCanCharged
	FlagCanPlunging
	FlagHasDefeated
	FlagSkipNextTurn
)

var flagNames = map[PlayerFlag]string{
	FlagDeclaredEnd:  "DECLARED_END",
	FlagLegendUsed:   "LEGEND_USED",
	FlagCanCharged:   "CAN_CHARGED",
	FlagCanPlunging:  "CAN_PLUNGING",
	FlagHasDefeated:  "HAS_DEFEATED",
	FlagSkipNextTurn: "SKIP_NEXT_TURN",
}

func (f PlayerFlag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FLAG_%d", int(f))
}
