package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs returns the opening pairs as 0-based seed indexes. Every
// pair folds index i against bracketSize-1-i, and the pairs are ordered so the
// two best seeds sit in opposite halves of the bracket.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// MatchLabel names a match: R1-M<i> in the opening round, then F, SF-<i>,
// QF-<i> or R<k>-M<i> by how many matches the round holds.
func MatchLabel(round, index, matchesInRound int) string {
	if round > 1 {
		switch matchesInRound {
		case 1:
			return "F"
		case 2:
			return fmt.Sprintf("SF-%d", index+1)
		case 4:
			return fmt.Sprintf("QF-%d", index+1)
		}
	}
	return fmt.Sprintf("R%d-M%d", round, index+1)
}

// BuildBracket seeds a single elimination bracket. Missing slots become byes
// and go to the best seeds.
func BuildBracket(participants []bracket.Participant) (bracket.Bracket, error) {
	if len(participants) < 2 {
		return bracket.Bracket{}, bracket.ErrNotEnoughParticipants
	}

	seeded := make([]bracket.Participant, len(participants))
	copy(seeded, participants)
	sortBySeed(seeded)

	size := calcBracketSize(len(seeded))
	totalRounds := int(math.Log2(float64(size)))

	b := bracket.Bracket{Size: size}
	for r := 1; r <= totalRounds; r++ {
		matches := size >> r
		round := bracket.Round{Number: r, MatchIDs: make([]string, matches)}
		for i := range matches {
			round.MatchIDs[i] = MatchLabel(r, i, matches)
		}
		b.Rounds = append(b.Rounds, round)
	}

	for i, pair := range generateRound1Pairs(size) {
		slot := bracket.Slot{
			MatchID: b.Rounds[0].MatchIDs[i],
			Round:   1,
			Order:   i + 1,
			A:       seeded[pair[0]],
		}
		if pair[1] < len(seeded) {
			opponent := seeded[pair[1]]
			slot.B = &opponent
		}
		b.Opening = append(b.Opening, slot)
	}

	return b, nil
}

func sortBySeed(ps []bracket.Participant) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Seed < ps[j].Seed })
}

// PairSurvivors fills a later round with the previous round's winners, in
// bracket order. An odd survivor out gets a bye.
func PairSurvivors(round bracket.Round, survivors []bracket.Participant) ([]bracket.Slot, error) {
	want := len(round.MatchIDs)
	if (len(survivors)+1)/2 != want {
		return nil, fmt.Errorf("round %d expects %d matches, got %d survivors", round.Number, want, len(survivors))
	}

	slots := make([]bracket.Slot, 0, want)
	for i := 0; i < len(survivors); i += 2 {
		slot := bracket.Slot{
			MatchID: round.MatchIDs[i/2],
			Round:   round.Number,
			Order:   i/2 + 1,
			A:       survivors[i],
		}
		if i+1 < len(survivors) {
			opponent := survivors[i+1]
			slot.B = &opponent
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
