package game

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// ChecksumVersion identifies the canonical form hashed by Checksum.
const ChecksumVersion = 1

// SerializationChecksum fingerprints a game state so replays and remote
// copies can be compared.
type SerializationChecksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

// Checksum hashes the JSON form of st. Struct fields marshal in declaration
// order and the state holds no maps, so equal states hash equally.
func Checksum(st *state.GameState) (*SerializationChecksum, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	sum := blake2b.Sum256(data)
	return &SerializationChecksum{Hash: hex.EncodeToString(sum[:]), Version: ChecksumVersion}, nil
}

// VerifyChecksum reports whether st matches a previously computed checksum.
func VerifyChecksum(st *state.GameState, expected *SerializationChecksum) (bool, error) {
	if expected.Version != ChecksumVersion {
		return false, fmt.Errorf("unsupported checksum version: %d", expected.Version)
	}
	actual, err := Checksum(st)
	if err != nil {
		return false, err
	}
	return actual.Hash == expected.Hash, nil
}

// ValidateRoundTrip serializes st, reads it back and checks nothing was
// lost on the way.
func ValidateRoundTrip(st *state.GameState) error {
	before, err := Checksum(st)
	if err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	var restored state.GameState
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("failed to deserialize state: %w", err)
	}
	ok, err := VerifyChecksum(&restored, before)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("round trip changed the state")
	}
	return nil
}
