package state

import "fmt"

// Config holds the per-game limits.
type Config struct {
	RandomSeed        uint64 `json:"randomSeed"`
	InitialDiceCount  int    `json:"initialDiceCount"`
	InitialHandsCount int    `json:"initialHandsCount"`
	MaxDiceCount      int    `json:"maxDiceCount"`
	MaxHandsCount     int    `json:"maxHandsCount"`
	MaxPileCount      int    `json:"maxPileCount"`
	MaxRoundsCount    int    `json:"maxRoundsCount"`
	MaxSummonsCount   int    `json:"maxSummonsCount"`
	MaxSupportsCount  int    `json:"maxSupportsCount"`
}

// DefaultConfig returns the standard rule set limits.
func DefaultConfig() Config {
	return Config{
		InitialDiceCount:  8,
		InitialHandsCount: 5,
		MaxDiceCount:      16,
		MaxHandsCount:     10,
		MaxPileCount:      200,
		MaxRoundsCount:    15,
		MaxSummonsCount:   4,
		MaxSupportsCount:  4,
	}
}

// Validate checks the limits are usable.
func (c Config) Validate() error {
	switch {
	case c.InitialDiceCount < 0 || c.InitialDiceCount > c.MaxDiceCount:
		return fmt.Errorf("initial dice count %d outside [0, %d]", c.InitialDiceCount, c.MaxDiceCount)
	case c.InitialHandsCount < 0 || c.InitialHandsCount > c.MaxHandsCount:
		return fmt.Errorf("initial hands count %d outside [0, %d]", c.InitialHandsCount, c.MaxHandsCount)
	case c.MaxPileCount <= 0:
		return fmt.Errorf("max pile count must be positive")
	case c.MaxRoundsCount <= 0:
		return fmt.Errorf("max rounds count must be positive")
	case c.MaxSummonsCount <= 0 || c.MaxSupportsCount <= 0:
		return fmt.Errorf("summon and support limits must be positive")
	}
	return nil
}
