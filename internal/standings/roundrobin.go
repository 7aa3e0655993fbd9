package standings

import (
	"sort"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

// RoundRobin ranks by wins, then head-to-head wins among the teams tied on
// wins, then game differential and seed.
func RoundRobin(teams []bracket.Team, matches []bracket.Match) []Standing {
	t := tally(teams, matches, false)

	byWins := map[int][]uuid.UUID{}
	for _, s := range t.rows {
		byWins[s.Wins] = append(byWins[s.Wins], s.TeamID)
	}
	h2h := make(map[uuid.UUID]int, len(t.rows))
	for _, group := range byWins {
		if len(group) < 2 {
			continue
		}
		for id, wins := range headToHead(group, matches) {
			h2h[id] = wins
		}
	}

	less := func(a, b *Standing) bool {
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if h2h[a.TeamID] != h2h[b.TeamID] {
			return h2h[a.TeamID] > h2h[b.TeamID]
		}
		if a.Differential != b.Differential {
			return a.Differential > b.Differential
		}
		return a.Seed < b.Seed
	}
	sort.SliceStable(t.rows, func(i, j int) bool { return less(t.rows[i], t.rows[j]) })
	assignRanks(t.rows, 1, func(a, b *Standing) bool {
		return a.Wins == b.Wins && h2h[a.TeamID] == h2h[b.TeamID] && a.Differential == b.Differential
	})
	return t.result()
}

// headToHead counts wins inside the mini-league formed by group.
func headToHead(group []uuid.UUID, matches []bracket.Match) map[uuid.UUID]int {
	in := make(map[uuid.UUID]bool, len(group))
	for _, id := range group {
		in[id] = true
	}
	wins := make(map[uuid.UUID]int, len(group))
	for i := range matches {
		m := &matches[i]
		if m.Status != bracket.MatchCompleted || m.WinnerID == nil || !m.Ready() {
			continue
		}
		if in[*m.Team1ID] && in[*m.Team2ID] {
			wins[*m.WinnerID]++
		}
	}
	return wins
}
