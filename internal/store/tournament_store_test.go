package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
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

func inTx(t *testing.T, db *sqlx.DB, fn func(tx *sqlx.Tx) error) {
	t.Helper()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

// seedStage stores a tournament, one stage and n teams.
func seedStage(t *testing.T, db *sqlx.DB, format bracket.Format, n int, opts bracket.Options) (*bracket.Stage, []bracket.Team) {
	t.Helper()
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := &bracket.Tournament{ID: uuid.New(), Name: "Cup", Status: bracket.TournamentActive, CreatedAt: time.Now().UTC()}
	stage := &bracket.Stage{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		Name:         "Playoffs",
		Format:       format,
		Status:       bracket.StageActive,
		TeamCount:    n,
		Options:      opts,
		CreatedAt:    time.Now().UTC(),
	}
	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.Team{ID: uuid.New(), StageID: stage.ID, Name: string(rune('A' + i)), Seed: i + 1}
	}

	inTx(t, db, func(tx *sqlx.Tx) error {
		if err := store.CreateTournament(ctx, tx, tournament); err != nil {
			return err
		}
		if err := store.CreateStage(ctx, tx, stage); err != nil {
			return err
		}
		return store.CreateTeams(ctx, tx, teams)
	})
	return stage, teams
}

func TestCreateTournament(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)

	tournament := &bracket.Tournament{
		ID:        uuid.New(),
		Name:      "Test Tournament",
		Status:    bracket.TournamentUpcoming,
		CreatedAt: time.Now().UTC(),
	}

	inTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateTournament(context.Background(), tx, tournament)
	})

	fetched, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, tournament.Status, fetched.Status)
	assert.WithinDuration(t, tournament.CreatedAt, fetched.CreatedAt, time.Second)

	inTx(t, db, func(tx *sqlx.Tx) error {
		return store.UpdateTournamentStatusTx(context.Background(), tx, tournament.ID, bracket.TournamentCompleted)
	})
	fetched, err = store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, fetched.Status)
}

func TestCreateStageAndTeams(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	opts := bracket.Options{BestOf: 3, BracketReset: true, Seeding: bracket.StandardSeeding, RandomSeed: 7}
	stage, teams := seedStage(t, db, bracket.DoubleEliminationFormat, 4, opts)
	store := NewTournamentStore(db)
	ctx := context.Background()

	fetched, err := store.GetStage(ctx, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.DoubleEliminationFormat, fetched.Format)
	assert.Equal(t, opts, fetched.Options)
	assert.Equal(t, 4, fetched.TeamCount)

	fetchedTeams, err := store.GetTeams(ctx, stage.ID)
	require.NoError(t, err)
	require.Len(t, fetchedTeams, 4)
	for i := range teams {
		assert.Equal(t, teams[i].ID, fetchedTeams[i].ID)
		assert.Equal(t, teams[i].Seed, fetchedTeams[i].Seed)
	}

	team, err := store.GetTeam(ctx, &teams[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "C", team.Name)

	none, err := store.GetTeam(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	stages, err := store.GetStages(ctx, stage.TournamentID)
	require.NoError(t, err)
	assert.Len(t, stages, 1)

	var open int
	inTx(t, db, func(tx *sqlx.Tx) error {
		if err := store.UpdateStageStatusTx(ctx, tx, stage.ID, bracket.StageCompleted); err != nil {
			return err
		}
		open, err = store.CountOpenStagesTx(ctx, tx, stage.TournamentID)
		return err
	})
	assert.Zero(t, open)
}

func TestCreateStageRequiresTournament(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	stage := &bracket.Stage{
		ID:           uuid.New(),
		TournamentID: uuid.New(),
		Name:         "Orphan",
		Format:       bracket.SingleEliminationFormat,
		Status:       bracket.StageActive,
		TeamCount:    2,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = store.CreateStage(context.Background(), tx, stage)
	assert.Error(t, err, "foreign keys must be enforced")
}
