package bracket

// Round is one column of the bracket. Participants for rounds after the
// first are only known once the previous round is over.
type Round struct {
	Number   int
	MatchIDs []string
}

// Bracket is the full schedule of a knockout.
type Bracket struct {
	Size    int
	Rounds  []Round
	Opening []Slot
}

func (b Bracket) TotalRounds() int {
	return len(b.Rounds)
}

// Byes counts the opening slots with no opponent.
func (b Bracket) Byes() int {
	n := 0
	for _, s := range b.Opening {
		if s.IsBye() {
			n++
		}
	}
	return n
}
