package service

import (
	"sort"
	"sync"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
)

// Standings keeps one tally per participant for a whole tournament.
type Standings struct {
	mu      sync.Mutex
	entries map[bracket.ParticipantKey]*bracket.StandingEntry
}

func NewStandings(participants []bracket.Participant) *Standings {
	s := &Standings{entries: make(map[bracket.ParticipantKey]*bracket.StandingEntry, len(participants))}
	for _, p := range participants {
		s.entries[p.Key()] = &bracket.StandingEntry{Participant: p}
	}
	return s
}

func (s *Standings) entry(p bracket.Participant) *bracket.StandingEntry {
	e, ok := s.entries[p.Key()]
	if !ok {
		e = &bracket.StandingEntry{Participant: p}
		s.entries[p.Key()] = e
	}
	return e
}

// RecordWin credits a decided game. loser is nil for a bye.
func (s *Standings) RecordWin(winner bracket.Participant, loser *bracket.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(winner).Wins++
	if loser != nil {
		s.entry(*loser).Losses++
	}
}

func (s *Standings) RecordDraw(a, b bracket.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(a).Draws++
	s.entry(b).Draws++
}

// Snapshot returns a copy sorted by points, best first, ties to the better seed.
func (s *Standings) Snapshot() []bracket.StandingEntry {
	s.mu.Lock()
	out := make([]bracket.StandingEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Points(), out[j].Points()
		if pi != pj {
			return pi > pj
		}
		return out[i].Participant.Seed < out[j].Participant.Seed
	})
	return out
}
