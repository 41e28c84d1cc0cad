// Package codegen produces random short codes for links.
// Generators know nothing about codes already in use; uniqueness is enforced by storage.
package codegen

import "math/rand/v2"

const (
	// Alphabet is the set of characters a code may contain.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	MinLength     = 6
	MaxLength     = 8
	DefaultLength = 8
)

// Generator generates link codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() string
}

// base62Generator draws each character independently and uniformly from Alphabet.
// The top-level math/rand/v2 source is ChaCha8 seeded by the runtime and safe for concurrent use.
type base62Generator struct {
	length int
}

// NewBase62 returns a generator of codes with the given length.
// Lengths outside [MinLength, MaxLength] fall back to DefaultLength.
func NewBase62(length int) Generator {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	return &base62Generator{length: length}
}

// Generate returns a new random code.
func (g *base62Generator) Generate() string {
	b := make([]byte, g.length)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b)
}
