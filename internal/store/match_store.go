package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

const matchOrder = ` ORDER BY CASE segment
        WHEN 'lower' THEN 1 WHEN 'grand_final' THEN 2 WHEN 'bracket_reset' THEN 3 ELSE 0 END,
    round ASC, bracket_position ASC`

func (s *MatchStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range matches {
		matches[i].CreatedAt = now
		matches[i].UpdatedAt = now
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, stage_id, segment, round, bracket_position,
            team1_id, team2_id, team1_source, team2_source, team1_score, team2_score,
            status, winner_id, loser_id, forfeit, is_bye, version, created_at, updated_at)
        VALUES (:id, :stage_id, :segment, :round, :bracket_position,
            :team1_id, :team2_id, :team1_source, :team2_source, :team1_score, :team2_score,
            :status, :winner_id, :loser_id, :forfeit, :is_bye, :version, :created_at, :updated_at)`, matches)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *MatchStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, q.Rebind("SELECT * FROM matches WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetMatchAtTx finds a match by its position in the stage. A missing match
// is nil, nil.
func (s *MatchStore) GetMatchAtTx(ctx context.Context, tx *sqlx.Tx, stageID uuid.UUID, key bracket.Key) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, tx.Rebind(`SELECT * FROM matches
        WHERE stage_id = ? AND segment = ? AND round = ? AND bracket_position = ?`),
		stageID, key.Segment, key.Round, key.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchStore) GetMatches(ctx context.Context, stageID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, s.db, stageID)
}

func (s *MatchStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, stageID uuid.UUID) ([]bracket.Match, error) {
	return getMatches(ctx, tx, stageID)
}

func getMatches(ctx context.Context, q sqlx.ExtContext, stageID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches, q.Rebind("SELECT * FROM matches WHERE stage_id = ?"+matchOrder), stageID)
	return matches, err
}

// SaveMatchTx writes every mutable column of m, but only if the row still
// has status prev and the version m was read at. On success m.Version is
// bumped; otherwise a *bracket.ConflictError is returned and nothing changes.
func (s *MatchStore) SaveMatchTx(ctx context.Context, tx *sqlx.Tx, m *bracket.Match, prev bracket.MatchStatus) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE matches SET
            team1_id = ?, team2_id = ?, team1_source = ?, team2_source = ?,
            team1_score = ?, team2_score = ?, status = ?, winner_id = ?, loser_id = ?,
            forfeit = ?, is_bye = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND status = ? AND version = ?`),
		m.Team1ID, m.Team2ID, m.Team1Source, m.Team2Source,
		m.Team1Score, m.Team2Score, m.Status, m.WinnerID, m.LoserID,
		m.Forfeit, m.IsBye, now,
		m.ID, prev, m.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bracket.NewConflictError(m.ID, "match changed since it was read")
	}
	m.Version++
	m.UpdatedAt = now
	return nil
}

// DeleteStageMatchesTx removes every match of a stage along with its events.
func (s *MatchStore) DeleteStageMatchesTx(ctx context.Context, tx *sqlx.Tx, stageID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM match_events WHERE stage_id = ?"), stageID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM matches WHERE stage_id = ?"), stageID)
	return err
}

func (s *MatchStore) AppendEventsTx(ctx context.Context, tx *sqlx.Tx, events ...bracket.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_events (id, match_id, stage_id, kind, payload, created_at)
            VALUES (:id, :match_id, :stage_id, :kind, :payload, :created_at)`, events)
	return err
}

func (s *MatchStore) GetEvents(ctx context.Context, matchID uuid.UUID) ([]bracket.MatchEvent, error) {
	var events []bracket.MatchEvent
	err := s.db.SelectContext(ctx, &events, s.db.Rebind("SELECT * FROM match_events WHERE match_id = ? ORDER BY created_at ASC, id ASC"), matchID)
	return events, err
}

// LastEventTx returns nil, nil when the match has no event of that kind.
func (s *MatchStore) LastEventTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, kind bracket.EventKind) (*bracket.MatchEvent, error) {
	var ev bracket.MatchEvent
	err := tx.GetContext(ctx, &ev, tx.Rebind(`SELECT * FROM match_events WHERE match_id = ? AND kind = ?
        ORDER BY created_at DESC LIMIT 1`), matchID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
