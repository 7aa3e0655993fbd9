package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/keylock"
	"github.com/AdamBeresnev/bracket-engine/internal/standings"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/swiss"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
)

type SwissService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	matches *store.MatchStore
	locks   *keylock.KeyLock
	group   singleflight.Group
	log     *slog.Logger
}

func NewSwissService(db *sqlx.DB, store *store.TournamentStore, matches *store.MatchStore, locks *keylock.KeyLock, log *slog.Logger) *SwissService {
	return &SwissService{db: db, store: store, matches: matches, locks: locks, log: log}
}

// GenerateNextSwissRound pairs the given round from the current standings.
// Asking for a round that already exists returns its matches unchanged.
func (s *SwissService) GenerateNextSwissRound(ctx context.Context, stageID uuid.UUID, round int) ([]bracket.Match, error) {
	key := fmt.Sprintf("%s:%d", stageID, round)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.generate(ctx, stageID, round)
	})
	if err != nil {
		return nil, err
	}
	return v.([]bracket.Match), nil
}

func (s *SwissService) generate(ctx context.Context, stageID uuid.UUID, round int) ([]bracket.Match, error) {
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
	if stage.Format != bracket.SwissFormat {
		return nil, bracket.NewValidationError("stage", "stage %s is not a swiss stage", stageID)
	}

	matches, err := s.matches.GetMatchesTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	if existing := roundMatches(matches, round); len(existing) > 0 {
		return existing, nil
	}

	strategy := bracket.NewSwiss(stage.TeamCount, stage.Options)
	last := bracket.MaxRound(matches, bracket.SwissSegment)
	if round > strategy.Rounds() {
		return nil, bracket.NewValidationError("round", "stage has only %d rounds", strategy.Rounds())
	}
	if round != last+1 {
		return nil, bracket.NewValidationError("round", "next round is %d, got %d", last+1, round)
	}
	if !bracket.RoundComplete(matches, bracket.SwissSegment, last) {
		return nil, bracket.NewValidationError("round", "round %d still has open matches", last)
	}

	teams, err := s.store.GetTeamsTx(ctx, tx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	rows := standings.Swiss(teams, matches)
	pairings, err := swiss.NextRound(rows, swiss.NewHistory(matches), swiss.ConfigFor(stage.Options, s.log.With("stage_id", stageID, "round", round)))
	if err != nil {
		return nil, err
	}

	next := bracket.NewSwissRound(stageID, round, swiss.Pairs(pairings))
	if err := s.matches.CreateMatches(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}
	events, err := createdEvents(stage, next)
	if err != nil {
		return nil, err
	}
	if err := s.matches.AppendEventsTx(ctx, tx, events...); err != nil {
		return nil, fmt.Errorf("failed to record match events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	relaxed, byes := 0, 0
	for _, p := range pairings {
		if p.Relaxed {
			relaxed++
		}
		if p.IsBye() {
			byes++
		}
	}
	s.log.Info("swiss round paired", "stage_id", stageID, "round", round, "matches", len(next), "relaxed", relaxed, "byes", byes)
	return next, nil
}

func roundMatches(matches []bracket.Match, round int) []bracket.Match {
	var out []bracket.Match
	for _, m := range matches {
		if m.Segment == bracket.SwissSegment && m.Round == round {
			out = append(out, m)
		}
	}
	return out
}
