package bracket

import (
	"math"

	"github.com/google/uuid"
)

// DoubleElimination keeps an upper bracket identical to single elimination
// and a lower bracket of 2*(upperRounds-1) rounds. Odd lower rounds are
// played among lower-bracket teams only; even rounds take in the losers of
// the next upper round.
type DoubleElimination struct {
	size        int
	rounds      int
	lowerRounds int
	reset       bool
	seeding     Seeding
}

func NewDoubleElimination(teamCount int, opts Options) *DoubleElimination {
	size := calcBracketSize(teamCount)
	rounds := int(math.Log2(float64(size)))
	return &DoubleElimination{
		size:        size,
		rounds:      rounds,
		lowerRounds: 2 * (rounds - 1),
		reset:       opts.BracketReset,
		seeding:     opts.Seeding,
	}
}

func (d *DoubleElimination) Format() Format { return DoubleEliminationFormat }

// lowerMatches is the number of matches in lower round r.
func (d *DoubleElimination) lowerMatches(r int) int {
	return d.size >> ((r+1)/2 + 1)
}

var (
	grandFinalKey   = Key{GrandFinalSegment, 1, 1}
	bracketResetKey = Key{BracketResetSegment, 1, 1}
)

func (d *DoubleElimination) Build(stageID uuid.UUID, teams []Team) (*BuildResult, error) {
	set := newMatchSet(stageID, DoubleEliminationFormat)
	buildUpper(set, d.size, d.rounds)

	lowerCount := 0
	for r := 1; r <= d.lowerRounds; r++ {
		for p := 1; p <= d.lowerMatches(r); p++ {
			m := set.add(LowerSegment, r, p)
			lowerCount++
			switch {
			case r == 1:
				m.SetSource(Team1Slot, set.ref(LoserRole, Key{UpperSegment, 1, 2*p - 1}))
				m.SetSource(Team2Slot, set.ref(LoserRole, Key{UpperSegment, 1, 2 * p}))
			case r%2 == 0:
				m.SetSource(Team1Slot, set.ref(WinnerRole, Key{LowerSegment, r - 1, p}))
				m.SetSource(Team2Slot, set.ref(LoserRole, Key{UpperSegment, r/2 + 1, p}))
			default:
				m.SetSource(Team1Slot, set.ref(WinnerRole, Key{LowerSegment, r - 1, 2*p - 1}))
				m.SetSource(Team2Slot, set.ref(WinnerRole, Key{LowerSegment, r - 1, 2 * p}))
			}
		}
	}

	gf := set.add(GrandFinalSegment, 1, 1)
	gf.SetSource(Team1Slot, set.ref(WinnerRole, Key{UpperSegment, d.rounds, 1}))
	if d.lowerRounds == 0 {
		gf.SetSource(Team2Slot, set.ref(LoserRole, Key{UpperSegment, 1, 1}))
	} else {
		gf.SetSource(Team2Slot, set.ref(WinnerRole, Key{LowerSegment, d.lowerRounds, 1}))
	}
	expected := d.size - 1 + lowerCount + 1

	if d.reset {
		br := set.add(BracketResetSegment, 1, 1)
		br.SetSource(Team1Slot, set.ref(LoserRole, grandFinalKey))
		br.SetSource(Team2Slot, set.ref(WinnerRole, grandFinalKey))
		expected++
	}

	seatRoundOne(set, teams, d.size, d.seeding)
	set.resolveByes(d)
	return set.result(DoubleEliminationFormat, d.rounds, d.lowerRounds, expected, nil), nil
}

func (d *DoubleElimination) Edges(m *Match) []Edge {
	from := m.Key()
	switch m.Segment {
	case UpperSegment:
		var win Edge
		if m.Round < d.rounds {
			win = upperWinnerEdge(m)
		} else {
			win = Edge{From: from, Role: WinnerRole, To: grandFinalKey, Slot: Team1Slot}
		}
		return []Edge{win, d.upperLoserEdge(m)}
	case LowerSegment:
		e := Edge{From: from, Role: WinnerRole}
		switch {
		case m.Round == d.lowerRounds:
			e.To, e.Slot = grandFinalKey, Team2Slot
		case m.Round%2 != 0:
			e.To, e.Slot = Key{LowerSegment, m.Round + 1, m.Position}, Team1Slot
		default:
			e.To, e.Slot = Key{LowerSegment, m.Round + 1, parentPosition(m.Position)}, paritySlot(m.Position)
		}
		return []Edge{e}
	case GrandFinalSegment:
		if !d.reset {
			return nil
		}
		return []Edge{
			{From: from, Role: WinnerRole, To: bracketResetKey, Slot: Team2Slot, Conditional: true},
			{From: from, Role: LoserRole, To: bracketResetKey, Slot: Team1Slot, Conditional: true},
		}
	}
	return nil
}

// upperLoserEdge drops a round 1 loser into lower round 1 and a round u
// loser into lower round 2*(u-1) at the same position.
func (d *DoubleElimination) upperLoserEdge(m *Match) Edge {
	e := Edge{From: m.Key(), Role: LoserRole}
	switch {
	case d.lowerRounds == 0:
		e.To, e.Slot = grandFinalKey, Team2Slot
	case m.Round == 1:
		e.To, e.Slot = Key{LowerSegment, 1, parentPosition(m.Position)}, paritySlot(m.Position)
	default:
		e.To, e.Slot = Key{LowerSegment, 2 * (m.Round - 1), m.Position}, Team2Slot
	}
	return e
}

// ResetNeeded reports whether the grand final was won by the lower-bracket
// finalist while a bracket reset is enabled.
func (d *DoubleElimination) ResetNeeded(gf *Match) bool {
	if !d.reset || gf.Segment != GrandFinalSegment {
		return false
	}
	slot, ok := gf.WinnerSlot()
	return ok && slot == Team2Slot
}

func (d *DoubleElimination) Complete(matches []Match) bool {
	gf := findMatch(matches, grandFinalKey)
	if gf == nil || gf.Status != MatchCompleted {
		return false
	}
	if !d.ResetNeeded(gf) {
		return true
	}
	br := findMatch(matches, bracketResetKey)
	return br != nil && br.Status == MatchCompleted
}

func GrandFinalKey() Key { return grandFinalKey }

func BracketResetKey() Key { return bracketResetKey }
