package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/keylock"
	"github.com/AdamBeresnev/bracket-engine/internal/progression"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens an in-memory SQLite database the way the server does
// and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(&config.Config{DBDriver: config.DriverSQLite, DatabaseURL: "file::memory:"})
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// every pooled connection would otherwise get its own empty database
	database.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database.DB, config.DriverSQLite, "../../migrations"), "Failed to apply migrations")
	return database
}

type services struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	matches     *store.MatchStore
	tournaments *TournamentService
	match       *MatchService
	swiss       *SwissService
}

func newServices(t *testing.T) *services {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tournamentStore := store.NewTournamentStore(db)
	matchStore := store.NewMatchStore(db)
	locks := keylock.New()
	swiss := NewSwissService(db, tournamentStore, matchStore, locks, log)

	return &services{
		db:          db,
		store:       tournamentStore,
		matches:     matchStore,
		tournaments: NewTournamentService(db, tournamentStore, matchStore, locks, log),
		match:       NewMatchService(db, tournamentStore, matchStore, locks, swiss, log),
		swiss:       swiss,
	}
}

func teamInputs(names ...string) []TeamInput {
	inputs := make([]TeamInput, len(names))
	for i, name := range names {
		inputs[i] = TeamInput{Name: name}
	}
	return inputs
}

// buildStage creates a tournament with one stage and builds its bracket.
func (s *services) buildStage(t *testing.T, format bracket.Format, opts bracket.Options, names ...string) *StageData {
	t.Helper()
	ctx := context.Background()

	tournament, err := s.tournaments.CreateTournament(ctx, "Spring Cup")
	require.NoError(t, err)
	stage, err := s.tournaments.CreateStage(ctx, tournament.ID, "Main")
	require.NoError(t, err)
	_, err = s.tournaments.BuildBracket(ctx, stage.ID, format, teamInputs(names...), opts)
	require.NoError(t, err)

	data, err := s.tournaments.GetStageData(ctx, stage.ID)
	require.NoError(t, err)
	return data
}

func (s *services) at(t *testing.T, stageID uuid.UUID, segment bracket.Segment, round, position int) *bracket.Match {
	t.Helper()
	matches, err := s.matches.GetMatches(context.Background(), stageID)
	require.NoError(t, err)
	for i := range matches {
		m := &matches[i]
		if m.Segment == segment && m.Round == round && m.Position == position {
			return m
		}
	}
	require.Failf(t, "match not found", "%s R%dM%d", segment, round, position)
	return nil
}

// win submits a 1-0 result for team.
func (s *services) win(t *testing.T, m *bracket.Match, team uuid.UUID) *progression.AdvancementResult {
	t.Helper()
	slot, ok := m.SlotOf(team)
	require.True(t, ok, "team not in match %s", m.Notation(true))
	sub := progression.Submission{Team1Score: 1}
	if slot == bracket.Team2Slot {
		sub = progression.Submission{Team2Score: 1}
	}
	res, err := s.match.CompleteMatch(context.Background(), m.ID, sub)
	require.NoError(t, err)
	return res
}

func teamID(t *testing.T, data *StageData, name string) uuid.UUID {
	t.Helper()
	for _, team := range data.Teams {
		if team.Name == name {
			return team.ID
		}
	}
	require.FailNow(t, "team not found: "+name)
	return uuid.Nil
}

func TestCreateTournamentValidation(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	_, err := s.tournaments.CreateTournament(ctx, "   ")
	var verr *bracket.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = s.tournaments.CreateStage(ctx, uuid.New(), "Main")
	require.Error(t, err)
}

func TestBuildBracket(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	data := s.buildStage(t, bracket.SingleEliminationFormat, bracket.Options{}, "A", "B", "C", "D")
	assert.Equal(t, bracket.StageActive, data.Stage.Status)
	assert.Equal(t, bracket.SingleEliminationFormat, data.Stage.Format)
	assert.Equal(t, 4, data.Stage.TeamCount)
	require.Len(t, data.Teams, 4)
	require.Len(t, data.Matches, 3)
	assert.Equal(t, 1, data.Teams[0].Seed)
	assert.Equal(t, "R1M1", data.Notation[data.Matches[0].ID])

	tournament, err := s.tournaments.GetTournamentData(ctx, data.Stage.TournamentID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentActive, tournament.Tournament.Status)
	require.Len(t, tournament.Stages, 1)

	events, err := s.matches.GetEvents(ctx, data.Matches[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bracket.EventCreated, events[0].Kind)

	t.Run("already built", func(t *testing.T) {
		_, err := s.tournaments.BuildBracket(ctx, data.Stage.ID, bracket.SingleEliminationFormat, teamInputs("E", "F"), bracket.Options{})
		var verr *bracket.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestBuildBracketValidation(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	tournament, err := s.tournaments.CreateTournament(ctx, "Spring Cup")
	require.NoError(t, err)
	stage, err := s.tournaments.CreateStage(ctx, tournament.ID, "Main")
	require.NoError(t, err)

	testCases := []struct {
		name   string
		format bracket.Format
		teams  []TeamInput
		opts   bracket.Options
	}{
		{"single team", bracket.SingleEliminationFormat, teamInputs("A"), bracket.Options{}},
		{"blank name", bracket.SwissFormat, teamInputs("A", " "), bracket.Options{}},
		{"unknown format", bracket.Format("ladder"), teamInputs("A", "B"), bracket.Options{}},
		{"even best of", bracket.RoundRobinFormat, teamInputs("A", "B"), bracket.Options{BestOf: 2}},
		{"name too long", bracket.SwissFormat, teamInputs("A", strings.Repeat("é", 51)), bracket.Options{}},
		{"duplicate seed", bracket.SingleEliminationFormat, []TeamInput{{Name: "A", Seed: 1}, {Name: "B", Seed: 1}}, bracket.Options{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.tournaments.BuildBracket(ctx, stage.ID, tc.format, tc.teams, tc.opts)
			var verr *bracket.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	fetched, err := s.store.GetStage(ctx, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StageUpcoming, fetched.Status, "a rejected build leaves the stage untouched")
}

func TestBuildBracketCountsNameCharacters(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	tournament, err := s.tournaments.CreateTournament(ctx, "Cup")
	require.NoError(t, err)
	stage, err := s.tournaments.CreateStage(ctx, tournament.ID, "Main")
	require.NoError(t, err)

	// 50 characters but 100 bytes
	long := strings.Repeat("ж", 50)
	_, err = s.tournaments.BuildBracket(ctx, stage.ID, bracket.SingleEliminationFormat, teamInputs(long, "Zürich Zebras"), bracket.Options{})
	require.NoError(t, err)

	teams, err := s.store.GetTeams(ctx, stage.ID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, long, teams[0].Name)
}

func TestRebuildBracket(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	data := s.buildStage(t, bracket.SingleEliminationFormat, bracket.Options{}, "A", "B", "C", "D")

	res, err := s.tournaments.RebuildBracket(ctx, data.Stage.ID, false)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.NotEqual(t, data.Matches[0].ID, res.Matches[0].ID)

	m := s.at(t, data.Stage.ID, bracket.UpperSegment, 1, 1)
	s.win(t, m, *m.Team1ID)

	_, err = s.tournaments.RebuildBracket(ctx, data.Stage.ID, false)
	var cerr *bracket.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, m.ID, cerr.MatchID)

	res, err = s.tournaments.RebuildBracket(ctx, data.Stage.ID, true)
	require.NoError(t, err)

	matches, err := s.matches.GetMatches(ctx, data.Stage.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.NotEqual(t, bracket.MatchCompleted, m.Status)
	}
	assert.Equal(t, res.Matches[0].ID, matches[0].ID)

	events, err := s.matches.GetEvents(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, events, "events of discarded matches are removed")
}

func TestGetStandings(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	data := s.buildStage(t, bracket.RoundRobinFormat, bracket.Options{}, "A", "B", "C")
	a := teamID(t, data, "A")

	for _, m := range data.Matches {
		if m.HasTeam(a) {
			s.win(t, &m, a)
			continue
		}
		s.win(t, &m, *m.Team1ID)
	}

	rows, err := s.tournaments.GetStandings(ctx, data.Stage.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Name)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "2-0", rows[0].Record())

	stage, err := s.store.GetStage(ctx, data.Stage.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StageCompleted, stage.Status)

	t.Run("upcoming stage", func(t *testing.T) {
		stage, err := s.tournaments.CreateStage(ctx, data.Stage.TournamentID, "Playoffs")
		require.NoError(t, err)
		_, err = s.tournaments.GetStandings(ctx, stage.ID)
		var verr *bracket.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("missing stage", func(t *testing.T) {
		_, err := s.tournaments.GetStandings(ctx, uuid.New())
		require.Error(t, err)
		assert.False(t, errors.As(err, new(*bracket.ValidationError)))
	})
}
