// Package player provides the built-in movers and the HTTP bot player.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
)

var errNoLegalMoves = errors.New("state has no legal moves; enable show_legal_moves")

// Random plays a uniformly random legal move.
type Random struct {
	name string
	rng  random.Source
}

func NewRandom(name string, rng random.Source) *Random {
	return &Random{name: name, rng: rng}
}

func (p *Random) Name() string { return p.name }

func (p *Random) Move(ctx context.Context, state game.State) (game.Response, error) {
	if err := ctx.Err(); err != nil {
		return game.Response{}, err
	}
	if len(state.LegalMovesUCI) == 0 {
		return game.Response{}, fmt.Errorf("%w: %w", game.ErrProvider, errNoLegalMoves)
	}
	mv := state.LegalMovesUCI[p.rng.IntN(len(state.LegalMovesUCI))]
	return game.Response{Raw: mv, Move: mv}, nil
}

// First always plays the first legal move it is offered.
type First struct {
	name string
}

func NewFirst(name string) *First {
	return &First{name: name}
}

func (p *First) Name() string { return p.name }

func (p *First) Move(ctx context.Context, state game.State) (game.Response, error) {
	if err := ctx.Err(); err != nil {
		return game.Response{}, err
	}
	if len(state.LegalMovesUCI) == 0 {
		return game.Response{}, fmt.Errorf("%w: %w", game.ErrProvider, errNoLegalMoves)
	}
	mv := state.LegalMovesUCI[0]
	return game.Response{Raw: mv, Move: mv}, nil
}

// Reply is one canned answer for a Scripted player.
type Reply struct {
	Raw string
	Err error
	// Block makes the player wait for its context instead of answering.
	Block bool
}

// Scripted answers from a fixed script, parsing each Raw with ParseResponse,
// and plays the first legal move once the script runs out.
type Scripted struct {
	name string

	mu      sync.Mutex
	replies []Reply
	states  []game.State
}

func NewScripted(name string, replies ...Reply) *Scripted {
	return &Scripted{name: name, replies: replies}
}

func (p *Scripted) Name() string { return p.name }

func (p *Scripted) Move(ctx context.Context, state game.State) (game.Response, error) {
	p.mu.Lock()
	p.states = append(p.states, state)
	var next *Reply
	if len(p.replies) > 0 {
		next = &p.replies[0]
		p.replies = p.replies[1:]
	}
	p.mu.Unlock()

	if next == nil {
		if len(state.LegalMovesUCI) == 0 {
			return game.Response{}, errNoLegalMoves
		}
		mv := state.LegalMovesUCI[0]
		return game.Response{Raw: mv, Move: mv}, nil
	}
	if next.Block {
		<-ctx.Done()
		return game.Response{}, ctx.Err()
	}
	if next.Err != nil {
		return game.Response{}, next.Err
	}
	return ParseResponse(next.Raw), nil
}

// States returns every state the player was asked to move from.
func (p *Scripted) States() []game.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]game.State, len(p.states))
	copy(out, p.states)
	return out
}
