package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"golang.org/x/sync/errgroup"
)

// MatchPlayer runs a single slot to a decision.
type MatchPlayer interface {
	Run(ctx context.Context, slot bracket.Slot, emit func(event.TournamentEvent)) (bracket.MatchResult, bracket.Participant, error)
}

// matchDone tells the scheduler that a match task has emitted its last event.
type matchDone struct {
	index  int
	result bracket.MatchResult
	winner bracket.Participant
	err    error
}

// roundMsg carries either an event or a completion, never both.
type roundMsg struct {
	ev   event.TournamentEvent
	done *matchDone
}

// RoundScheduler runs every match of a round at once and merges their events
// into one stream. Events of one match keep their order; events of different
// matches interleave in arrival order.
type RoundScheduler struct {
	matches MatchPlayer
}

func NewRoundScheduler(matches MatchPlayer) *RoundScheduler {
	return &RoundScheduler{matches: matches}
}

// Run emits every event of the round from the calling goroutine and returns
// results and winners in slot order. The first match failure cancels the
// others and is returned once every task has reported in.
func (s *RoundScheduler) Run(ctx context.Context, slots []bracket.Slot, emit func(event.TournamentEvent)) ([]bracket.MatchResult, []bracket.Participant, error) {
	g, gctx := errgroup.WithContext(ctx)
	msgs := make(chan roundMsg)

	for i, slot := range slots {
		g.Go(func() (err error) {
			var done matchDone
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("match %s panicked: %v\n%s", slot.MatchID, r, debug.Stack())
				}
				done.index, done.err = i, err
				msgs <- roundMsg{done: &done}
			}()

			done.result, done.winner, err = s.matches.Run(gctx, slot, func(ev event.TournamentEvent) {
				msgs <- roundMsg{ev: ev}
			})
			return err
		})
	}

	results := make([]bracket.MatchResult, len(slots))
	winners := make([]bracket.Participant, len(slots))
	for pending := len(slots); pending > 0; {
		msg := <-msgs
		if msg.done == nil {
			emit(msg.ev)
			continue
		}
		pending--
		if msg.done.err == nil {
			results[msg.done.index] = msg.done.result
			winners[msg.done.index] = msg.done.winner
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, winners, nil
}
