package swiss

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

type pairKey [2]uuid.UUID

func keyOf(a, b uuid.UUID) pairKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return pairKey{a, b}
}

// History is who has met whom and who already sat out a round. It is
// rebuilt from the stage's matches every time a round is paired.
type History struct {
	played map[pairKey]int
	byes   map[uuid.UUID]int
}

func NewHistory(matches []bracket.Match) *History {
	h := &History{
		played: make(map[pairKey]int),
		byes:   make(map[uuid.UUID]int),
	}
	for i := range matches {
		m := &matches[i]
		if m.Status == bracket.MatchCancelled {
			continue
		}
		switch {
		case m.Ready():
			h.played[keyOf(*m.Team1ID, *m.Team2ID)]++
		case m.IsBye && m.Team1ID != nil:
			h.byes[*m.Team1ID]++
		case m.IsBye && m.Team2ID != nil:
			h.byes[*m.Team2ID]++
		}
	}
	return h
}

func (h *History) Played(a, b uuid.UUID) bool {
	return h != nil && h.played[keyOf(a, b)] > 0
}

func (h *History) HadBye(team uuid.UUID) bool {
	return h != nil && h.byes[team] > 0
}
