package standings

import (
	"sort"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// Swiss ranks by wins, Buchholz, game differential and finally seed. The
// pairing engine sorts with the same order.
func Swiss(teams []bracket.Team, matches []bracket.Match) []Standing {
	t := tally(teams, matches, true)
	for _, s := range t.rows {
		s.Buchholz = 0
		for _, opp := range s.Opponents {
			if o := t.index[opp]; o != nil {
				s.Buchholz += o.Wins
			}
		}
	}

	sort.SliceStable(t.rows, func(i, j int) bool { return swissLess(t.rows[i], t.rows[j]) })
	assignRanks(t.rows, 1, func(a, b *Standing) bool {
		return a.Wins == b.Wins && a.Buchholz == b.Buchholz && a.Differential == b.Differential
	})
	return t.result()
}

func swissLess(a, b *Standing) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.Buchholz != b.Buchholz {
		return a.Buchholz > b.Buchholz
	}
	if a.Differential != b.Differential {
		return a.Differential > b.Differential
	}
	return a.Seed < b.Seed
}

// SortSwiss orders standings in place the way Swiss ranks them.
func SortSwiss(rows []Standing) {
	sort.SliceStable(rows, func(i, j int) bool { return swissLess(&rows[i], &rows[j]) })
}
