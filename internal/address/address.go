// Package address handles Solana-style account addresses: base58 public keys
// and program-derived addresses.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of an ed25519 public key.
const PublicKeySize = 32

// Seed limits enforced by the runtime for program-derived addresses.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrInvalidPublicKey is returned when a string is not a base58 32-byte key.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidSeeds is returned when seeds exceed the runtime limits.
	ErrInvalidSeeds = errors.New("invalid seeds")

	// ErrAddressOnCurve is returned when a derived address is a valid ed25519 point.
	ErrAddressOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump is returned when every bump yields an on-curve point.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: decoded to %d bytes", ErrInvalidPublicKey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePublicKey is ParsePublicKey for constants. Panics on error.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 encoding.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether all bytes are zero.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// IsOnCurve reports whether the key decodes to a valid ed25519 point.
// Program-derived addresses are always off the curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// CreateProgramAddress hashes seeds with the program ID and fails if the result is on the curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if err := validateSeeds(seeds, MaxSeeds); err != nil {
		return PublicKey{}, err
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if pk.IsOnCurve() {
		return PublicKey{}, ErrAddressOnCurve
	}
	return pk, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	// One slot is reserved for the bump seed.
	if err := validateSeeds(seeds, MaxSeeds-1); err != nil {
		return PublicKey{}, 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

func validateSeeds(seeds [][]byte, maxSeeds int) error {
	if len(seeds) > maxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), maxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrInvalidSeeds, i, len(seed))
		}
	}
	return nil
}

// MintAddress derives the token mint of an auction from seeds ["mint", auctionID].
// The mint is its own issuing authority.
func MintAddress(programID PublicKey, auctionID uuid.UUID) (PublicKey, uint8, error) {
	return FindProgramAddress([][]byte{[]byte("mint"), auctionID[:]}, programID)
}
