package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/keylock"
	"github.com/AdamBeresnev/bracket-engine/internal/progression"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	matches *store.MatchStore
	locks   *keylock.KeyLock
	swiss   *SwissService
	log     *slog.Logger
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, matches *store.MatchStore, locks *keylock.KeyLock, swiss *SwissService, log *slog.Logger) *MatchService {
	return &MatchService{db: db, store: store, matches: matches, locks: locks, swiss: swiss, log: log}
}

type MatchDetail struct {
	Match    *bracket.Match       `json:"match"`
	Notation string               `json:"notation"`
	Team1    *bracket.Team        `json:"team1,omitempty"`
	Team2    *bracket.Team        `json:"team2,omitempty"`
	Events   []bracket.MatchEvent `json:"events"`
}

func (s *MatchService) GetMatchDetail(ctx context.Context, matchID uuid.UUID) (*MatchDetail, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	stage, err := s.store.GetStage(ctx, match.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	team1, err := s.store.GetTeam(ctx, match.Team1ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team 1: %w", err)
	}
	team2, err := s.store.GetTeam(ctx, match.Team2ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team 2: %w", err)
	}
	events, err := s.matches.GetEvents(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match events: %w", err)
	}

	return &MatchDetail{
		Match:    match,
		Notation: bracket.Notation(stage.Format, match),
		Team1:    team1,
		Team2:    team2,
		Events:   events,
	}, nil
}

// CompleteMatch records a result and advances the bracket in one
// transaction. Resubmitting an identical result is a no-op that returns the
// first outcome.
func (s *MatchService) CompleteMatch(ctx context.Context, matchID uuid.UUID, sub progression.Submission) (*progression.AdvancementResult, error) {
	var (
		res   *progression.AdvancementResult
		stage *bracket.Stage
	)
	err := s.withEngine(ctx, matchID, func(engine *progression.Engine, st *bracket.Stage) error {
		var err error
		stage = st
		res, err = engine.Complete(ctx, matchID, sub)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The next Swiss round takes the stage lock itself, so it runs after the
	// completion has committed and released it.
	if res.NextRound > 0 && stage.AutoPairSwiss && s.swiss != nil {
		if _, err := s.swiss.GenerateNextSwissRound(ctx, stage.ID, res.NextRound); err != nil {
			s.log.Error("failed to pair next swiss round", "stage_id", stage.ID, "round", res.NextRound, "error", err)
		}
	}
	return res, nil
}

func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	var match *bracket.Match
	err := s.withEngine(ctx, matchID, func(engine *progression.Engine, _ *bracket.Stage) error {
		var err error
		match, err = engine.Start(ctx, matchID)
		return err
	})
	return match, err
}

func (s *MatchService) DisputeMatch(ctx context.Context, matchID uuid.UUID, reason string) (*bracket.Match, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, bracket.NewValidationError("reason", "a dispute needs a reason")
	}
	var match *bracket.Match
	err := s.withEngine(ctx, matchID, func(engine *progression.Engine, _ *bracket.Stage) error {
		var err error
		match, err = engine.Dispute(ctx, matchID, reason)
		return err
	})
	if err == nil {
		s.log.Warn("match disputed", "match_id", matchID, "reason", reason)
	}
	return match, err
}

// withEngine holds the stage lock for the whole transaction, commit
// included.
func (s *MatchService) withEngine(ctx context.Context, matchID uuid.UUID, fn func(*progression.Engine, *bracket.Stage) error) error {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	unlock := s.locks.Lock(match.StageID.String())
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stage, err := s.store.GetStageTx(ctx, tx, match.StageID)
	if err != nil {
		return fmt.Errorf("failed to get stage: %w", err)
	}
	engine, err := progression.NewEngine(stage, newTxGraph(tx, s.store, s.matches, stage.TournamentID), s.log)
	if err != nil {
		return err
	}
	if err := fn(engine, stage); err != nil {
		return err
	}
	return tx.Commit()
}
