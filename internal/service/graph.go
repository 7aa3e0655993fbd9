package service

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// txGraph runs every read and write of one progression step through the
// same transaction.
type txGraph struct {
	tx           *sqlx.Tx
	store        *store.TournamentStore
	matches      *store.MatchStore
	tournamentID uuid.UUID
}

func newTxGraph(tx *sqlx.Tx, s *store.TournamentStore, matches *store.MatchStore, tournamentID uuid.UUID) *txGraph {
	return &txGraph{tx: tx, store: s, matches: matches, tournamentID: tournamentID}
}

func (g *txGraph) Match(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return g.matches.GetMatchTx(ctx, g.tx, id)
}

func (g *txGraph) MatchAt(ctx context.Context, stageID uuid.UUID, key bracket.Key) (*bracket.Match, error) {
	return g.matches.GetMatchAtTx(ctx, g.tx, stageID, key)
}

func (g *txGraph) Matches(ctx context.Context, stageID uuid.UUID) ([]bracket.Match, error) {
	return g.matches.GetMatchesTx(ctx, g.tx, stageID)
}

func (g *txGraph) SaveMatch(ctx context.Context, m *bracket.Match, prev bracket.MatchStatus) error {
	return g.matches.SaveMatchTx(ctx, g.tx, m, prev)
}

func (g *txGraph) AppendEvent(ctx context.Context, ev bracket.MatchEvent) error {
	return g.matches.AppendEventsTx(ctx, g.tx, ev)
}

func (g *txGraph) LastEvent(ctx context.Context, matchID uuid.UUID, kind bracket.EventKind) (*bracket.MatchEvent, error) {
	return g.matches.LastEventTx(ctx, g.tx, matchID, kind)
}

func (g *txGraph) CompleteStage(ctx context.Context, stageID uuid.UUID) (bool, error) {
	if err := g.store.UpdateStageStatusTx(ctx, g.tx, stageID, bracket.StageCompleted); err != nil {
		return false, err
	}
	open, err := g.store.CountOpenStagesTx(ctx, g.tx, g.tournamentID)
	if err != nil {
		return false, err
	}
	if open > 0 {
		return false, nil
	}
	if err := g.store.UpdateTournamentStatusTx(ctx, g.tx, g.tournamentID, bracket.TournamentCompleted); err != nil {
		return false, err
	}
	return true, nil
}
