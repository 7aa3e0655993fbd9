package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/keylock"
	"github.com/AdamBeresnev/bracket-engine/internal/standings"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	matches *store.MatchStore
	locks   *keylock.KeyLock
	log     *slog.Logger
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, matches *store.MatchStore, locks *keylock.KeyLock, log *slog.Logger) *TournamentService {
	return &TournamentService{db: db, store: store, matches: matches, locks: locks, log: log}
}

type TeamInput struct {
	Name   string `json:"name"`
	Seed   int    `json:"seed"`
	Rating int    `json:"rating"`
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Stages     []bracket.Stage     `json:"stages"`
}

type StageData struct {
	Stage    *bracket.Stage       `json:"stage"`
	Teams    []bracket.Team       `json:"teams"`
	Matches  []bracket.Match      `json:"matches"`
	Notation map[uuid.UUID]string `json:"notation"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, name string) (*bracket.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, bracket.NewValidationError("name", "tournament name is required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament := &bracket.Tournament{
		ID:        uuid.New(),
		Name:      name,
		Status:    bracket.TournamentUpcoming,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, tx.Commit()
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments, err := s.store.ListTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	stages, err := s.store.GetStages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	return &TournamentData{Tournament: tournament, Stages: stages}, nil
}

// CreateStage adds an empty stage; its bracket is built separately.
func (s *TournamentService) CreateStage(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, bracket.NewValidationError("name", "stage name is required")
	}
	if _, err := s.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stage := &bracket.Stage{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Name:         name,
		Status:       bracket.StageUpcoming,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateStage(ctx, tx, stage); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	return stage, tx.Commit()
}

// BuildBracket seeds the teams into a new bracket for an upcoming stage.
func (s *TournamentService) BuildBracket(ctx context.Context, stageID uuid.UUID, format bracket.Format, inputs []TeamInput, opts bracket.Options) (*bracket.BuildResult, error) {
	teams, err := teamsFromInput(stageID, inputs)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(stageID.String())
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stage, err := s.store.GetStageTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	if stage.Status != bracket.StageUpcoming {
		return nil, bracket.NewValidationError("stage", "bracket of stage %s is already built, rebuild it instead", stage.ID)
	}

	res, err := bracket.Build(stage.ID, format, teams, opts)
	if err != nil {
		return nil, err
	}

	stage.Format = format
	stage.Options = opts
	stage.TeamCount = len(teams)
	stage.Status = bracket.StageActive
	if err := s.store.UpdateStageTx(ctx, tx, stage); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}
	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return nil, fmt.Errorf("failed to create teams: %w", err)
	}
	if err := s.storeBracket(ctx, tx, stage, res); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, stage.TournamentID, bracket.TournamentActive); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.log.Info("bracket built", "stage_id", stage.ID, "format", format, "teams", len(teams), "matches", len(res.Matches))
	return res, nil
}

// RebuildBracket throws away every match of a stage and builds it again
// from the stored teams and rules. Once a real result exists this needs
// force.
func (s *TournamentService) RebuildBracket(ctx context.Context, stageID uuid.UUID, force bool) (*bracket.BuildResult, error) {
	unlock := s.locks.Lock(stageID.String())
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stage, err := s.store.GetStageTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	if stage.Status == bracket.StageUpcoming {
		return nil, bracket.NewValidationError("stage", "stage %s has no bracket yet", stage.ID)
	}

	matches, err := s.matches.GetMatchesTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	if !force {
		for _, m := range matches {
			if m.Status == bracket.MatchCompleted && !m.IsBye {
				return nil, bracket.NewConflictError(m.ID, "stage already has results, rebuild with force to discard them")
			}
		}
	}

	teams, err := s.store.GetTeamsTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	res, err := bracket.Build(stage.ID, stage.Format, teams, stage.Options)
	if err != nil {
		return nil, err
	}

	if err := s.matches.DeleteStageMatchesTx(ctx, tx, stageID); err != nil {
		return nil, fmt.Errorf("failed to delete matches: %w", err)
	}
	if err := s.storeBracket(ctx, tx, stage, res); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStageStatusTx(ctx, tx, stageID, bracket.StageActive); err != nil {
		return nil, fmt.Errorf("failed to update stage status: %w", err)
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, stage.TournamentID, bracket.TournamentActive); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.log.Warn("bracket rebuilt", "stage_id", stageID, "discarded_matches", len(matches), "force", force)
	return res, nil
}

func (s *TournamentService) storeBracket(ctx context.Context, tx *sqlx.Tx, stage *bracket.Stage, res *bracket.BuildResult) error {
	if err := s.matches.CreateMatches(ctx, tx, res.Matches); err != nil {
		return fmt.Errorf("failed to create matches: %w", err)
	}
	events, err := createdEvents(stage, res.Matches)
	if err != nil {
		return err
	}
	if err := s.matches.AppendEventsTx(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to record match events: %w", err)
	}
	return nil
}

func createdEvents(stage *bracket.Stage, matches []bracket.Match) ([]bracket.MatchEvent, error) {
	events := make([]bracket.MatchEvent, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		ev, err := bracket.NewMatchEvent(m, bracket.EventCreated, map[string]any{
			"notation": bracket.Notation(stage.Format, m),
			"status":   m.Status,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode match event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func teamsFromInput(stageID uuid.UUID, inputs []TeamInput) ([]bracket.Team, error) {
	teams := make([]bracket.Team, 0, len(inputs))
	for i, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, bracket.NewValidationError("teams", "team %d has no name", i+1)
		}
		if utf8.RuneCountInString(name) > 50 {
			return nil, bracket.NewValidationError("teams", "team name '%s' exceeds 50 characters", name)
		}
		seed := input.Seed
		if seed == 0 {
			seed = i + 1
		}
		teams = append(teams, bracket.Team{
			ID:      uuid.New(),
			StageID: stageID,
			Name:    name,
			Seed:    seed,
			Rating:  input.Rating,
		})
	}
	return teams, nil
}

// GetStageData loads a stage with its teams and matches.
func (s *TournamentService) GetStageData(ctx context.Context, stageID uuid.UUID) (*StageData, error) {
	data := &StageData{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stage, err := s.store.GetStage(gCtx, stageID)
		if err != nil {
			return fmt.Errorf("failed to get stage: %w", err)
		}
		data.Stage = stage
		return nil
	})
	g.Go(func() error {
		teams, err := s.store.GetTeams(gCtx, stageID)
		if err != nil {
			return fmt.Errorf("failed to get teams: %w", err)
		}
		data.Teams = teams
		return nil
	})
	g.Go(func() error {
		matches, err := s.matches.GetMatches(gCtx, stageID)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		data.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.Notation = make(map[uuid.UUID]string, len(data.Matches))
	for i := range data.Matches {
		data.Notation[data.Matches[i].ID] = bracket.Notation(data.Stage.Format, &data.Matches[i])
	}
	return data, nil
}

func (s *TournamentService) GetStandings(ctx context.Context, stageID uuid.UUID) ([]standings.Standing, error) {
	data, err := s.GetStageData(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if data.Stage.Status == bracket.StageUpcoming {
		return nil, bracket.NewValidationError("stage", "stage %s has no bracket yet", stageID)
	}
	return standings.Compute(data.Stage.Format, data.Teams, data.Matches)
}
