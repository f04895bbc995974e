package state

import (
	"errors"
	"fmt"
)

const (
	DeckCharacters = 3
	DeckCards      = 30
)

// ErrInvalidDeck is returned for decks of the wrong shape.
var ErrInvalidDeck = errors.New("state: invalid deck")

// Deck lists the definition ids a player brings to a game. Duplicate and
// legend limits belong to deck building, not to the engine.
type Deck struct {
	Characters []int `json:"characters" yaml:"characters"`
	Cards      []int `json:"cards" yaml:"cards"`
}

// Validate checks the deck shape.
func (d Deck) Validate() error {
	if len(d.Characters) != DeckCharacters {
		return fmt.Errorf("%w: %d characters, want %d", ErrInvalidDeck, len(d.Characters), DeckCharacters)
	}
	if len(d.Cards) != DeckCards {
		return fmt.Errorf("%w: %d cards, want %d", ErrInvalidDeck, len(d.Cards), DeckCards)
	}
	for _, id := range d.Characters {
		if id <= 0 {
			return fmt.Errorf("%w: character id %d", ErrInvalidDeck, id)
		}
	}
	for _, id := range d.Cards {
		if id <= 0 {
			return fmt.Errorf("%w: card id %d", ErrInvalidDeck, id)
		}
	}
	return nil
}
