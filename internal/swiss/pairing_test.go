package swiss

import (
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/standings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTeams(n int) []bracket.Team {
	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.Team{ID: uuid.New(), Name: string(rune('A' + i)), Seed: i + 1}
	}
	return teams
}

// playRound completes every open match, the better seed winning 2-0.
func playRound(matches []bracket.Match, seeds map[uuid.UUID]int) {
	for i := range matches {
		m := &matches[i]
		if m.Status == bracket.MatchCompleted {
			continue
		}
		two, zero := 2, 0
		winner, loser := m.Team1ID, m.Team2ID
		if seeds[*m.Team2ID] < seeds[*m.Team1ID] {
			winner, loser = loser, winner
		}
		if winner == m.Team1ID {
			m.Team1Score, m.Team2Score = &two, &zero
		} else {
			m.Team1Score, m.Team2Score = &zero, &two
		}
		m.WinnerID, m.LoserID = winner, loser
		m.Status = bracket.MatchCompleted
	}
}

func seedsOf(teams []bracket.Team) map[uuid.UUID]int {
	seeds := make(map[uuid.UUID]int, len(teams))
	for _, t := range teams {
		seeds[t.ID] = t.Seed
	}
	return seeds
}

func TestNextRoundPairsWinGroupsFirst(t *testing.T) {
	teams := makeTeams(6)
	stageID := uuid.New()
	res, err := bracket.Build(stageID, bracket.SwissFormat, teams, bracket.Options{})
	require.NoError(t, err)
	matches := res.Matches
	playRound(matches, seedsOf(teams))

	rows := standings.Swiss(teams, matches)
	pairings, err := NextRound(rows, NewHistory(matches), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 3)

	// three 1-0 teams and three 0-1 teams: one pairing inside each group,
	// then the leftover 1-0 team drops to meet a 0-1 team
	assert.Equal(t, 1, pairings[0].Team1.Wins)
	assert.Equal(t, 1, pairings[0].Team2.Wins)
	assert.Equal(t, 1, pairings[1].Team1.Wins)
	assert.Equal(t, 0, pairings[1].Team2.Wins)
	assert.Equal(t, 0, pairings[2].Team1.Wins)
	assert.Equal(t, 0, pairings[2].Team2.Wins)

	history := NewHistory(matches)
	for _, p := range pairings {
		assert.False(t, p.Relaxed)
		assert.False(t, history.Played(p.Team1.TeamID, p.Team2.TeamID))
	}
}

func TestNextRoundKeepsWinGroupsTogether(t *testing.T) {
	teams := makeTeams(8)
	rows := make([]standings.Standing, len(teams))
	for i, team := range teams {
		rows[i] = standings.Standing{TeamID: team.ID, Name: team.Name, Seed: team.Seed}
		if i < 4 {
			rows[i].Wins = 1
		}
	}
	// A-B first would leave C-D, who already met; the 1-0 group must still
	// pair inside itself instead of sending C and D down
	history := NewHistory([]bracket.Match{completed(teams[2], teams[3])})

	pairings, err := NextRound(rows, history, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 4)

	got := make([][2]string, len(pairings))
	for i, p := range pairings {
		assert.Equal(t, p.Team1.Wins, p.Team2.Wins, "%s and %s are in different win groups", p.Team1.Name, p.Team2.Name)
		assert.False(t, p.Relaxed)
		got[i] = [2]string{p.Team1.Name, p.Team2.Name}
	}
	assert.Equal(t, [][2]string{{"A", "C"}, {"B", "D"}, {"E", "F"}, {"G", "H"}}, got)
}

func TestNextRoundFloatsLowestRankedTeam(t *testing.T) {
	teams := makeTeams(6)
	rows := make([]standings.Standing, len(teams))
	for i, team := range teams {
		rows[i] = standings.Standing{TeamID: team.ID, Name: team.Name, Seed: team.Seed}
		if i < 3 {
			rows[i].Wins = 1
		}
	}

	pairings, err := NextRound(rows, NewHistory(nil), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 3)

	got := make([][2]string, len(pairings))
	for i, p := range pairings {
		got[i] = [2]string{p.Team1.Name, p.Team2.Name}
	}
	assert.Equal(t, [][2]string{{"A", "B"}, {"C", "D"}, {"E", "F"}}, got)
}

func TestNextRoundAvoidsRematches(t *testing.T) {
	teams := makeTeams(8)
	seeds := seedsOf(teams)
	stageID := uuid.New()
	res, err := bracket.Build(stageID, bracket.SwissFormat, teams, bracket.Options{SwissRounds: 4})
	require.NoError(t, err)

	matches := res.Matches
	playRound(matches, seeds)
	for round := 2; round <= 4; round++ {
		pairings, err := NextRound(standings.Swiss(teams, matches), NewHistory(matches), DefaultConfig())
		require.NoError(t, err)
		require.Len(t, pairings, 4)

		next := bracket.NewSwissRound(stageID, round, Pairs(pairings))
		playRound(next, seeds)
		matches = append(matches, next...)
	}

	met := map[pairKey]int{}
	for _, m := range matches {
		met[keyOf(*m.Team1ID, *m.Team2ID)]++
	}
	for pair, n := range met {
		assert.Equal(t, 1, n, "%s and %s met %d times", pair[0], pair[1], n)
	}
	assert.Len(t, matches, 16)
}

func TestNextRoundBacktracksInsteadOfRematch(t *testing.T) {
	teams := makeTeams(4)
	a, b, c, d := teams[0], teams[1], teams[2], teams[3]
	rows := make([]standings.Standing, len(teams))
	for i, team := range teams {
		rows[i] = standings.Standing{TeamID: team.ID, Name: team.Name, Seed: team.Seed}
	}
	// A-B first would leave C-D, who already met
	history := NewHistory([]bracket.Match{completed(c, d)})

	pairings, err := NextRound(rows, history, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 2)

	assert.Equal(t, a.ID, pairings[0].Team1.TeamID)
	assert.Equal(t, c.ID, pairings[0].Team2.TeamID)
	assert.Equal(t, b.ID, pairings[1].Team1.TeamID)
	assert.Equal(t, d.ID, pairings[1].Team2.TeamID)
	for _, p := range pairings {
		assert.False(t, p.Relaxed)
	}
}

func completed(winner, loser bracket.Team) bracket.Match {
	return bracket.Match{
		ID:       uuid.New(),
		Segment:  bracket.SwissSegment,
		Team1ID:  &winner.ID,
		Team2ID:  &loser.ID,
		WinnerID: &winner.ID,
		LoserID:  &loser.ID,
		Status:   bracket.MatchCompleted,
	}
}

func TestNextRoundRelaxedWhenNoFreshOpponent(t *testing.T) {
	teams := makeTeams(2)
	matches := []bracket.Match{completed(teams[0], teams[1])}

	pairings, err := NextRound(standings.Swiss(teams, matches), NewHistory(matches), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 1)
	assert.True(t, pairings[0].Relaxed)
	assert.Equal(t, teams[0].ID, pairings[0].Team1.TeamID)
	assert.Equal(t, 1, pairings[0].Team1.Wins)
}

func TestNextRoundByeRotates(t *testing.T) {
	teams := makeTeams(5)
	stageID := uuid.New()
	res, err := bracket.Build(stageID, bracket.SwissFormat, teams, bracket.Options{})
	require.NoError(t, err)
	matches := res.Matches
	playRound(matches, seedsOf(teams))

	history := NewHistory(matches)
	require.True(t, history.HadBye(teams[4].ID))

	pairings, err := NextRound(standings.Swiss(teams, matches), history, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, pairings, 3)

	bye := pairings[2]
	assert.True(t, bye.IsBye())
	assert.NotEqual(t, teams[4].ID, bye.Team1.TeamID, "no team sits out twice while others have not")

	round := bracket.NewSwissRound(stageID, 2, Pairs(pairings))
	assert.True(t, round[2].IsBye)
	assert.Equal(t, bracket.MatchCompleted, round[2].Status)
	assert.Equal(t, bye.Team1.TeamID, *round[2].WinnerID)
}

func TestNextRoundWithoutByes(t *testing.T) {
	teams := makeTeams(3)
	cfg := DefaultConfig()
	cfg.AllowByes = false

	_, err := NextRound(standings.Swiss(teams, nil), NewHistory(nil), cfg)
	assert.ErrorIs(t, err, ErrCannotPair)

	var verr *bracket.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestConfigFor(t *testing.T) {
	assert.True(t, ConfigFor(bracket.Options{}, nil).AllowByes)
	assert.False(t, ConfigFor(bracket.Options{DisableByes: true}, nil).AllowByes)
}
