package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
)

// printer writes events as human readable lines.
type printer struct {
	w io.Writer
	// boards prints the position before every turn.
	boards bool
}

func newPrinter(w io.Writer, boards bool) *printer {
	return &printer{w: w, boards: boards}
}

func (p *printer) game(ev event.GameEvent) {
	p.gameLine("", ev)
}

func (p *printer) gameLine(prefix string, ev event.GameEvent) {
	switch e := ev.(type) {
	case event.GameStart:
		fmt.Fprintf(p.w, "%s%s (white) vs %s (black)\n", prefix, e.WhiteName, e.BlackName)
	case event.TurnStart:
		if p.boards {
			fmt.Fprintf(p.w, "%s%s\n", prefix, strings.ReplaceAll(strings.TrimRight(e.BoardASCII, "\n"), "\n", "\n"+prefix))
		}
	case event.InvalidMove:
		fmt.Fprintf(p.w, "%s  %s attempt %d rejected (%s): %s\n", prefix, e.Color, e.AttemptNum, e.ErrorKind, e.Error)
	case event.MoveApplied:
		dots := "."
		if e.Color == event.Black {
			dots = "..."
		}
		fmt.Fprintf(p.w, "%s  %d%s %s\n", prefix, e.MoveNumber, dots, e.MoveSAN)
	case event.GameOver:
		winner := "draw"
		if e.WinnerName != nil {
			winner = *e.WinnerName + " wins"
		}
		fmt.Fprintf(p.w, "%s%s by %s, %s after %d moves\n", prefix, e.Result, e.Reason, winner, e.TotalMoves)
	}
}

func (p *printer) tournament(ev event.TournamentEvent) {
	switch e := ev.(type) {
	case event.TournamentStart:
		fmt.Fprintf(p.w, "%s tournament: %d players, %d rounds\n", e.TournamentType, len(e.ParticipantNames), e.TotalRounds)
	case event.RoundStart:
		fmt.Fprintf(p.w, "\nRound %d of %d\n", e.RoundNum, e.TotalRounds)
		for _, pr := range e.Pairings {
			fmt.Fprintf(p.w, "  %s: %s vs %s\n", pr.MatchID, pr.White, pr.Black)
		}
	case event.MatchStart:
		fmt.Fprintf(p.w, "[%s] game %d\n", e.MatchID, e.GameNum)
	case event.MatchGame:
		p.gameLine("["+e.MatchID+"] ", e.GameEvent)
	case event.MatchComplete:
		if e.Result.Bye {
			fmt.Fprintf(p.w, "[%s] %s advances on a bye\n", e.MatchID, e.AdvancingName)
			return
		}
		fmt.Fprintf(p.w, "[%s] %s advances (%s)\n", e.MatchID, e.AdvancingName, e.Result.GameResult)
	case event.RoundComplete:
		fmt.Fprintf(p.w, "Round %d complete\n", e.RoundNum)
	case event.TournamentComplete:
		fmt.Fprintf(p.w, "\nChampion: %s\n", e.WinnerName)
		p.standings(e.FinalStandings)
	case event.Error:
		fmt.Fprintf(p.w, "Tournament aborted: %s\n", e.Message)
	}
}

func (p *printer) standings(entries []bracket.StandingEntry) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPlayer\tSeed\tW\tL\tD\tPts")
	for i, s := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%.1f\n", i+1, s.Participant.DisplayName, s.Participant.Seed, s.Wins, s.Losses, s.Draws, s.Points())
	}
	tw.Flush()
}
