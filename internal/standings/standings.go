// Package standings derives ranked standings from completed match records.
// Nothing here is persisted; every call recomputes from the full history.
package standings

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

type Standing struct {
	TeamID       uuid.UUID   `json:"team_id"`
	Name         string      `json:"name"`
	Seed         int         `json:"seed"`
	Rank         int         `json:"rank"`
	Wins         int         `json:"wins"`
	Losses       int         `json:"losses"`
	Played       int         `json:"played"`
	Differential int         `json:"differential"`
	Buchholz     int         `json:"buchholz"`
	Byes         int         `json:"byes"`
	Opponents    []uuid.UUID `json:"opponents,omitempty"`

	// Elimination formats only
	Reached      int  `json:"reached,omitempty"`
	EliminatedAt int  `json:"eliminated_at,omitempty"`
	Eliminated   bool `json:"eliminated"`
}

// Record is the win-loss string shown next to a team, e.g. "2-1".
func (s Standing) Record() string {
	return fmt.Sprintf("%d-%d", s.Wins, s.Losses)
}

// Compute dispatches on the stage format.
func Compute(format bracket.Format, teams []bracket.Team, matches []bracket.Match) ([]Standing, error) {
	switch format {
	case bracket.SwissFormat:
		return Swiss(teams, matches), nil
	case bracket.RoundRobinFormat:
		return RoundRobin(teams, matches), nil
	}
	if format.Elimination() {
		return Elimination(format, teams, matches), nil
	}
	return nil, bracket.NewValidationError("format", "unknown format %q", format)
}

type table struct {
	rows  []*Standing
	index map[uuid.UUID]*Standing
}

// tally counts every completed match. A bye counts as a win only when
// byeWins is set.
func tally(teams []bracket.Team, matches []bracket.Match, byeWins bool) *table {
	t := &table{index: make(map[uuid.UUID]*Standing, len(teams))}
	for _, team := range teams {
		s := &Standing{TeamID: team.ID, Name: team.Name, Seed: team.Seed}
		t.rows = append(t.rows, s)
		t.index[team.ID] = s
	}

	for i := range matches {
		m := &matches[i]
		if m.Status != bracket.MatchCompleted || m.WinnerID == nil {
			continue
		}
		winner := t.index[*m.WinnerID]
		if m.IsBye || !m.Ready() {
			if winner != nil {
				winner.Byes++
				if byeWins {
					winner.Wins++
				}
			}
			continue
		}

		for _, id := range []uuid.UUID{*m.Team1ID, *m.Team2ID} {
			s := t.index[id]
			if s == nil {
				continue
			}
			s.Played++
			s.Differential += m.Differential(id)
			if opp := m.Opponent(id); opp != nil && !contains(s.Opponents, *opp) {
				s.Opponents = append(s.Opponents, *opp)
			}
			if id == *m.WinnerID {
				s.Wins++
			} else {
				s.Losses++
			}
		}
	}
	return t
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (t *table) result() []Standing {
	out := make([]Standing, len(t.rows))
	for i, s := range t.rows {
		out[i] = *s
	}
	return out
}

// assignRanks uses competition ranking (1, 2, 2, 4) over rows that are
// already sorted; tied reports whether two neighbours share a rank.
func assignRanks(rows []*Standing, first int, tied func(a, b *Standing) bool) {
	for i, s := range rows {
		if i > 0 && tied(rows[i-1], s) {
			s.Rank = rows[i-1].Rank
			continue
		}
		s.Rank = first + i
	}
}
