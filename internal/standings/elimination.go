package standings

import (
	"math"
	"sort"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

// Elimination ranks by the deepest round a team reached and then by how
// late it was knocked out. The winner and loser of the deciding final always
// take ranks 1 and 2.
func Elimination(format bracket.Format, teams []bracket.Team, matches []bracket.Match) []Standing {
	t := tally(teams, matches, false)
	lowerRounds := bracket.MaxRound(matches, bracket.LowerSegment)

	livesLeft := 1
	if format == bracket.DoubleEliminationFormat {
		livesLeft = 2
	}

	// Play order guarantees a team's matches come in increasing depth.
	ordered := make([]bracket.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return depth(format, &ordered[i], lowerRounds) < depth(format, &ordered[j], lowerRounds)
	})

	lost := make(map[uuid.UUID]int, len(teams))
	for i := range ordered {
		m := &ordered[i]
		d := depth(format, m, lowerRounds)
		for _, id := range []*uuid.UUID{m.Team1ID, m.Team2ID} {
			if id == nil {
				continue
			}
			if s := t.index[*id]; s != nil && d > s.Reached {
				s.Reached = d
			}
		}
		if m.Status != bracket.MatchCompleted || m.IsBye || m.WinnerID == nil {
			continue
		}
		loser := m.Opponent(*m.WinnerID)
		if loser == nil {
			continue
		}
		lost[*loser]++
		if s := t.index[*loser]; s != nil && !s.Eliminated && lost[*loser] >= livesLeft {
			s.Eliminated = true
			s.EliminatedAt = d
		}
	}

	var champion, runnerUp *Standing
	if final := decidingFinal(format, matches); final != nil {
		champion = t.index[*final.WinnerID]
		if loser := final.Opponent(*final.WinnerID); loser != nil {
			runnerUp = t.index[*loser]
		}
		if runnerUp != nil && !runnerUp.Eliminated {
			runnerUp.Eliminated = true
			runnerUp.EliminatedAt = depth(format, final, lowerRounds)
		}
	}

	rest := make([]*Standing, 0, len(t.rows))
	for _, s := range t.rows {
		if s != champion && s != runnerUp {
			rest = append(rest, s)
		}
	}
	knockedOut := func(s *Standing) int {
		if !s.Eliminated {
			return math.MaxInt
		}
		return s.EliminatedAt
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		if a.Reached != b.Reached {
			return a.Reached > b.Reached
		}
		if knockedOut(a) != knockedOut(b) {
			return knockedOut(a) > knockedOut(b)
		}
		return a.Seed < b.Seed
	})

	first := 1
	var ranked []*Standing
	if champion != nil {
		champion.Rank = 1
		ranked = append(ranked, champion)
		first = 2
		if runnerUp != nil {
			runnerUp.Rank = 2
			ranked = append(ranked, runnerUp)
			first = 3
		}
	}
	assignRanks(rest, first, func(a, b *Standing) bool {
		return a.Reached == b.Reached && knockedOut(a) == knockedOut(b)
	})
	t.rows = append(ranked, rest...)
	return t.result()
}

// depth places a match on one axis of progress. In double elimination an
// upper round u is level with the lower round its losers drop into.
func depth(format bracket.Format, m *bracket.Match, lowerRounds int) int {
	if format != bracket.DoubleEliminationFormat {
		return m.Round
	}
	switch m.Segment {
	case bracket.UpperSegment:
		return 2 * (m.Round - 1)
	case bracket.LowerSegment:
		return m.Round
	case bracket.GrandFinalSegment:
		return lowerRounds + 1
	case bracket.BracketResetSegment:
		return lowerRounds + 2
	}
	return m.Round
}

// decidingFinal returns the match that settled first and second place, or
// nil while the stage is still running.
func decidingFinal(format bracket.Format, matches []bracket.Match) *bracket.Match {
	settled := func(m *bracket.Match) bool {
		return m != nil && m.Status == bracket.MatchCompleted && m.WinnerID != nil && !m.IsBye
	}
	if format == bracket.SingleEliminationFormat {
		last := bracket.MaxRound(matches, bracket.UpperSegment)
		final := lookup(matches, bracket.Key{Segment: bracket.UpperSegment, Round: last, Position: 1})
		if settled(final) {
			return final
		}
		return nil
	}

	reset := lookup(matches, bracket.BracketResetKey())
	if settled(reset) {
		return reset
	}
	gf := lookup(matches, bracket.GrandFinalKey())
	if !settled(gf) {
		return nil
	}
	if reset != nil && reset.Status != bracket.MatchCancelled {
		// grand final was won from the lower bracket, the reset decides
		if slot, ok := gf.WinnerSlot(); ok && slot == bracket.Team2Slot {
			return nil
		}
	}
	return gf
}

func lookup(matches []bracket.Match, key bracket.Key) *bracket.Match {
	for i := range matches {
		if matches[i].Key() == key {
			return &matches[i]
		}
	}
	return nil
}
