package bracket

import "github.com/google/uuid"

// RoundRobin schedules every pair once with the circle method: the first
// team stays fixed while the rest rotate one place per round.
type RoundRobin struct {
	teamCount int
}

func NewRoundRobin(teamCount int) *RoundRobin {
	return &RoundRobin{teamCount: teamCount}
}

func (rr *RoundRobin) Format() Format { return RoundRobinFormat }

// Rounds is n-1 for an even field and n for an odd one.
func (rr *RoundRobin) Rounds() int {
	if rr.teamCount%2 == 0 {
		return rr.teamCount - 1
	}
	return rr.teamCount
}

func (rr *RoundRobin) Build(stageID uuid.UUID, teams []Team) (*BuildResult, error) {
	circle := make([]*Team, 0, len(teams)+1)
	for i := range teams {
		circle = append(circle, &teams[i])
	}
	if len(circle)%2 != 0 {
		// nil is the phantom opponent; meeting it is a bye
		circle = append(circle, nil)
	}

	set := newMatchSet(stageID, RoundRobinFormat)
	var byes []Bye
	n := len(circle)
	for r := 1; r < n; r++ {
		position := 0
		for i := 0; i < n/2; i++ {
			home, away := circle[i], circle[n-1-i]
			if home == nil || away == nil {
				if home == nil {
					home = away
				}
				byes = append(byes, Bye{Round: r, TeamID: home.ID})
				continue
			}
			// Alternate the fixed team's side so it does not always hold slot 1.
			if i == 0 && r%2 == 0 {
				home, away = away, home
			}
			position++
			m := set.add(RoundRobinSegment, r, position)
			m.SetTeam(Team1Slot, home.ID)
			m.SetTeam(Team2Slot, away.ID)
		}

		last := circle[n-1]
		copy(circle[2:], circle[1:n-1])
		circle[1] = last
	}

	expected := len(teams) * (len(teams) - 1) / 2
	return set.result(RoundRobinFormat, n-1, 0, expected, byes), nil
}

func (rr *RoundRobin) Edges(*Match) []Edge { return nil }

func (rr *RoundRobin) Complete(matches []Match) bool {
	if len(matches) == 0 {
		return false
	}
	for i := range matches {
		if matches[i].Status != MatchCompleted && matches[i].Status != MatchCancelled {
			return false
		}
	}
	return true
}
