package service

import (
	"fmt"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
)

// DrawPolicy decides what happens after a drawn game.
type DrawPolicy interface {
	Name() bracket.DrawHandling
	// Resolve is called after game gameNum of a match between a and b ends
	// drawn. It returns the advancing participant, or nil to play again with
	// colors swapped.
	Resolve(a, b bracket.Participant, gameNum int) *bracket.Participant
}

// Rematch replays drawn games. With MaxRematches > 0 it falls back to the
// seed rule once that many rematches have been drawn too.
type Rematch struct {
	MaxRematches int
}

func (Rematch) Name() bracket.DrawHandling { return bracket.DrawRematch }

func (r Rematch) Resolve(a, b bracket.Participant, gameNum int) *bracket.Participant {
	if r.MaxRematches > 0 && gameNum > r.MaxRematches {
		return SeedRule{}.Resolve(a, b, gameNum)
	}
	return nil
}

// CoinFlip picks the advancing participant uniformly at random.
type CoinFlip struct {
	Rand random.Source
}

func (CoinFlip) Name() bracket.DrawHandling { return bracket.DrawCoinFlip }

func (c CoinFlip) Resolve(a, b bracket.Participant, _ int) *bracket.Participant {
	if c.Rand.IntN(2) == 0 {
		return &a
	}
	return &b
}

// SeedRule advances the better (lower-numbered) seed.
type SeedRule struct{}

func (SeedRule) Name() bracket.DrawHandling { return bracket.DrawSeed }

func (SeedRule) Resolve(a, b bracket.Participant, _ int) *bracket.Participant {
	if b.Seed < a.Seed {
		return &b
	}
	return &a
}

func NewDrawPolicy(h bracket.DrawHandling, rng random.Source, maxRematches int) (DrawPolicy, error) {
	switch h {
	case bracket.DrawRematch:
		return Rematch{MaxRematches: maxRematches}, nil
	case bracket.DrawCoinFlip:
		return CoinFlip{Rand: rng}, nil
	case bracket.DrawSeed:
		return SeedRule{}, nil
	default:
		return nil, fmt.Errorf("unknown draw handling %q", h)
	}
}
