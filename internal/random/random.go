// Package random supplies the coin used for color assignment, coin-flip draw
// resolution and random movers.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source picks an integer in [0, n).
type Source interface {
	IntN(n int) int
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Locked is a seeded PCG generator safe for concurrent match goroutines.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewLocked(seed uint64) *Locked {
	return &Locked{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// New seeds from crypto/rand.
func New() (*Locked, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewLocked(seed), nil
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// Fixed always returns the same index, clamped to n-1. Useful in tests.
type Fixed int

func (f Fixed) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}
