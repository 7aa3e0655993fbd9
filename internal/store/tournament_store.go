package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, status, created_at)
        VALUES (:id, :name, :status, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	return err
}

func (s *TournamentStore) CreateStage(ctx context.Context, tx *sqlx.Tx, stage *bracket.Stage) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO stages (id, tournament_id, name, format, status, team_count,
            best_of, bracket_reset, seeding, swiss_rounds, swiss_random, random_seed, disable_byes, auto_pair_swiss, created_at)
        VALUES (:id, :tournament_id, :name, :format, :status, :team_count,
            :best_of, :bracket_reset, :seeding, :swiss_rounds, :swiss_random, :random_seed, :disable_byes, :auto_pair_swiss, :created_at)`, stage)
	return err
}

// UpdateStageTx rewrites the format, rule set and status of a stage.
func (s *TournamentStore) UpdateStageTx(ctx context.Context, tx *sqlx.Tx, stage *bracket.Stage) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE stages SET format = :format, status = :status, team_count = :team_count,
            best_of = :best_of, bracket_reset = :bracket_reset, seeding = :seeding, swiss_rounds = :swiss_rounds,
            swiss_random = :swiss_random, random_seed = :random_seed, disable_byes = :disable_byes,
            auto_pair_swiss = :auto_pair_swiss
        WHERE id = :id`, stage)
	return err
}

func (s *TournamentStore) UpdateStageStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.StageStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE stages SET status = ? WHERE id = ?"), status, id)
	return err
}

func (s *TournamentStore) GetStage(ctx context.Context, id uuid.UUID) (*bracket.Stage, error) {
	return getStage(ctx, s.db, id)
}

func (s *TournamentStore) GetStageTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Stage, error) {
	return getStage(ctx, tx, id)
}

func getStage(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Stage, error) {
	var stage bracket.Stage
	if err := sqlx.GetContext(ctx, q, &stage, q.Rebind("SELECT * FROM stages WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &stage, nil
}

func (s *TournamentStore) GetStages(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Stage, error) {
	var stages []bracket.Stage
	err := s.db.SelectContext(ctx, &stages, s.db.Rebind("SELECT * FROM stages WHERE tournament_id = ? ORDER BY created_at ASC"), tournamentID)
	return stages, err
}

// CountOpenStagesTx counts the stages of a tournament that are not completed.
func (s *TournamentStore) CountOpenStagesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM stages WHERE tournament_id = ? AND status <> ?"),
		tournamentID, bracket.StageCompleted)
	return n, err
}

func (s *TournamentStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO teams (id, stage_id, name, seed, rating)
            VALUES (:id, :stage_id, :name, :seed, :rating)`, teams)
	return err
}

func (s *TournamentStore) GetTeams(ctx context.Context, stageID uuid.UUID) ([]bracket.Team, error) {
	return getTeams(ctx, s.db, stageID)
}

func (s *TournamentStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, stageID uuid.UUID) ([]bracket.Team, error) {
	return getTeams(ctx, tx, stageID)
}

func getTeams(ctx context.Context, q sqlx.ExtContext, stageID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := sqlx.SelectContext(ctx, q, &teams, q.Rebind("SELECT * FROM teams WHERE stage_id = ? ORDER BY seed ASC"), stageID)
	return teams, err
}

// GetTeam returns nil, nil for a nil id so callers can pass empty slots.
func (s *TournamentStore) GetTeam(ctx context.Context, id *uuid.UUID) (*bracket.Team, error) {
	if id == nil {
		return nil, nil
	}
	var team bracket.Team
	err := s.db.GetContext(ctx, &team, s.db.Rebind("SELECT * FROM teams WHERE id = ?"), *id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", *id, err)
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}
