// Package progression advances teams through a built bracket as match
// results come in.
package progression

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
)

type Submission struct {
	Team1Score int `json:"team1_score"`
	Team2Score int `json:"team2_score"`
	// ForfeitWinner settles the match without a played score.
	ForfeitWinner *uuid.UUID `json:"forfeit_winner,omitempty"`
}

func (s Submission) equal(o Submission) bool {
	if (s.ForfeitWinner == nil) != (o.ForfeitWinner == nil) {
		return false
	}
	if s.ForfeitWinner != nil && *s.ForfeitWinner != *o.ForfeitWinner {
		return false
	}
	return s.Team1Score == o.Team1Score && s.Team2Score == o.Team2Score
}

// Placement is one slot written while advancing a result. TeamID is nil when
// the slot was closed off as a bye.
type Placement struct {
	MatchID  uuid.UUID           `json:"match_id"`
	Notation string              `json:"notation"`
	Slot     bracket.Slot        `json:"slot"`
	TeamID   *uuid.UUID          `json:"team_id,omitempty"`
	Role     bracket.Role        `json:"role"`
	Status   bracket.MatchStatus `json:"status"`
}

type AdvancementResult struct {
	MatchID            uuid.UUID   `json:"match_id"`
	Notation           string      `json:"notation"`
	WinnerID           uuid.UUID   `json:"winner_id"`
	LoserID            uuid.UUID   `json:"loser_id"`
	Placements         []Placement `json:"placements"`
	ResetActivated     bool        `json:"reset_activated"`
	StageComplete      bool        `json:"stage_complete"`
	TournamentComplete bool        `json:"tournament_complete"`
	// NextRound is set for Swiss once the completed round allows pairing
	// the next one.
	NextRound int `json:"next_round,omitempty"`
}

// completion is the payload of a completed event, kept so a repeated
// submission can answer with the first result.
type completion struct {
	Submission Submission        `json:"submission"`
	Result     AdvancementResult `json:"result"`
}

// Engine is not safe for concurrent use; callers serialise per stage.
type Engine struct {
	stage    *bracket.Stage
	strategy bracket.Strategy
	graph    Graph
	log      *slog.Logger
}

func NewEngine(stage *bracket.Stage, graph Graph, log *slog.Logger) (*Engine, error) {
	strategy, err := bracket.ForStage(stage)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stage format: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		stage:    stage,
		strategy: strategy,
		graph:    graph,
		log:      log.With("stage_id", stage.ID),
	}, nil
}

// Complete records a result and moves the winner and loser on. Submitting
// the same result again returns the first outcome without writing.
func (e *Engine) Complete(ctx context.Context, matchID uuid.UUID, sub Submission) (*AdvancementResult, error) {
	m, err := e.graph.Match(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m.StageID != e.stage.ID {
		return nil, bracket.NewValidationError("match", "match %s does not belong to stage %s", m.ID, e.stage.ID)
	}

	switch m.Status {
	case bracket.MatchCompleted:
		return e.replay(ctx, m, sub)
	case bracket.MatchScheduled, bracket.MatchLive, bracket.MatchDisputed:
	default:
		return nil, bracket.NewConflictError(m.ID, "match is %s and cannot take a result", m.Status)
	}
	if !m.Ready() {
		return nil, bracket.NewConflictError(m.ID, "match is missing a team")
	}

	winner, loser, err := e.decide(m, sub)
	if err != nil {
		return nil, err
	}

	prev := m.Status
	m.Team1Score, m.Team2Score = utils.Ptr(sub.Team1Score), utils.Ptr(sub.Team2Score)
	m.WinnerID, m.LoserID = &winner, &loser
	m.Forfeit = sub.ForfeitWinner != nil
	m.Status = bracket.MatchCompleted
	if err := e.graph.SaveMatch(ctx, m, prev); err != nil {
		return nil, fmt.Errorf("failed to save match result: %w", err)
	}

	res := &AdvancementResult{
		MatchID:  m.ID,
		Notation: bracket.Notation(e.stage.Format, m),
		WinnerID: winner,
		LoserID:  loser,
	}
	if err := e.advance(ctx, m, res); err != nil {
		return nil, err
	}
	if err := e.checkCompletion(ctx, m, res); err != nil {
		return nil, err
	}
	if err := e.record(ctx, m, bracket.EventCompleted, completion{Submission: sub, Result: *res}); err != nil {
		return nil, err
	}

	e.log.Info("match completed",
		"match", res.Notation, "winner_id", winner, "placements", len(res.Placements),
		"stage_complete", res.StageComplete)
	return res, nil
}

func (e *Engine) replay(ctx context.Context, m *bracket.Match, sub Submission) (*AdvancementResult, error) {
	ev, err := e.graph.LastEvent(ctx, m.ID, bracket.EventCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to get completion event: %w", err)
	}
	if ev == nil {
		return nil, bracket.NewConflictError(m.ID, "match was settled without a submitted result")
	}
	var prev completion
	if err := json.Unmarshal([]byte(ev.Payload), &prev); err != nil {
		return nil, fmt.Errorf("failed to decode completion event: %w", err)
	}
	if !prev.Submission.equal(sub) {
		return nil, bracket.NewConflictError(m.ID, "match already completed with a different result")
	}
	return &prev.Result, nil
}

// decide validates the submission and returns winner and loser.
func (e *Engine) decide(m *bracket.Match, sub Submission) (uuid.UUID, uuid.UUID, error) {
	team1, team2 := *m.Team1ID, *m.Team2ID
	if sub.Team1Score < 0 || sub.Team2Score < 0 {
		return uuid.Nil, uuid.Nil, bracket.NewValidationError("score", "scores must not be negative")
	}

	if sub.ForfeitWinner != nil {
		if !m.HasTeam(*sub.ForfeitWinner) {
			return uuid.Nil, uuid.Nil, bracket.NewValidationError("forfeit_winner", "team %s is not in this match", *sub.ForfeitWinner)
		}
		if *sub.ForfeitWinner == team1 {
			return team1, team2, nil
		}
		return team2, team1, nil
	}

	if sub.Team1Score == sub.Team2Score {
		return uuid.Nil, uuid.Nil, bracket.NewValidationError("score", "a match cannot end in a tie (%d-%d)", sub.Team1Score, sub.Team2Score)
	}
	high, low := sub.Team1Score, sub.Team2Score
	if low > high {
		high, low = low, high
	}
	if need := e.stage.WinsNeeded(); need > 0 && high != need {
		return uuid.Nil, uuid.Nil, bracket.NewValidationError("score",
			"best of %d is won with %d games, got %d-%d", e.stage.BestOf, need, sub.Team1Score, sub.Team2Score)
	}

	if sub.Team1Score > sub.Team2Score {
		return team1, team2, nil
	}
	return team2, team1, nil
}

// advance follows the unconditional edges of a completed match.
func (e *Engine) advance(ctx context.Context, m *bracket.Match, res *AdvancementResult) error {
	for _, edge := range e.strategy.Edges(m) {
		if edge.Conditional {
			continue
		}
		var team *uuid.UUID
		if edge.Role == bracket.WinnerRole {
			team = m.WinnerID
		} else {
			team = m.LoserID
		}
		if err := e.fill(ctx, m, edge, team, res); err != nil {
			return err
		}
	}
	if m.Segment == bracket.GrandFinalSegment {
		return e.grandFinal(ctx, m, res)
	}
	return nil
}

// fill seats team in the edge's destination slot, or closes the slot as a
// bye when team is nil, and settles the destination if only one team can
// ever reach it.
func (e *Engine) fill(ctx context.Context, from *bracket.Match, edge bracket.Edge, team *uuid.UUID, res *AdvancementResult) error {
	dest, err := e.graph.MatchAt(ctx, e.stage.ID, edge.To)
	if err != nil {
		return fmt.Errorf("failed to get destination match: %w", err)
	}
	if dest == nil {
		err := bracket.NewStructuralError(from.ID, "%s has no destination %s for its %s",
			bracket.Notation(e.stage.Format, from), edge.To.Notation(true), edge.Role)
		e.log.Error("bracket structure broken", "error", err)
		return err
	}

	current := dest.TeamAt(edge.Slot)
	switch {
	case team != nil && current != nil && *current == *team:
		// already advanced by an earlier delivery
		return nil
	case team == nil && dest.ByeAt(edge.Slot):
		return nil
	case current != nil:
		return bracket.NewConflictError(dest.ID, "slot %d already holds team %s", edge.Slot, *current)
	case dest.Status == bracket.MatchCompleted || dest.Status == bracket.MatchCancelled:
		return bracket.NewConflictError(dest.ID, "destination is already %s", dest.Status)
	}

	prev := dest.Status
	if team != nil {
		dest.SetTeam(edge.Slot, *team)
	} else {
		dest.SetSource(edge.Slot, bracket.ByeSource)
	}
	if dest.Status == bracket.MatchPending && dest.Ready() {
		dest.Status = bracket.MatchScheduled
	}

	bye1, bye2 := dest.ByeAt(bracket.Team1Slot), dest.ByeAt(bracket.Team2Slot)
	settles := (bye1 || bye2) && (bye1 && bye2 || dest.Team1ID != nil || dest.Team2ID != nil)
	if settles {
		dest.IsBye = true
		dest.Status = bracket.MatchCompleted
		switch {
		case bye1 && bye2:
		case bye1:
			dest.WinnerID = dest.Team2ID
		default:
			dest.WinnerID = dest.Team1ID
		}
	}

	if err := e.graph.SaveMatch(ctx, dest, prev); err != nil {
		return fmt.Errorf("failed to save destination match: %w", err)
	}
	res.Placements = append(res.Placements, Placement{
		MatchID:  dest.ID,
		Notation: bracket.Notation(e.stage.Format, dest),
		Slot:     edge.Slot,
		TeamID:   team,
		Role:     edge.Role,
		Status:   dest.Status,
	})
	payload := map[string]any{"from": from.ID, "slot": edge.Slot, "role": edge.Role, "team_id": team}
	if err := e.record(ctx, dest, bracket.EventAdvanced, payload); err != nil {
		return err
	}

	if !settles {
		return nil
	}
	if err := e.record(ctx, dest, bracket.EventBye, map[string]any{"winner_id": dest.WinnerID}); err != nil {
		return err
	}
	// nobody ever loses a bye, so the loser side is closed off as well
	for _, next := range e.strategy.Edges(dest) {
		if next.Conditional {
			continue
		}
		var t *uuid.UUID
		if next.Role == bracket.WinnerRole {
			t = dest.WinnerID
		}
		if err := e.fill(ctx, dest, next, t, res); err != nil {
			return err
		}
	}
	if dest.Segment == bracket.GrandFinalSegment {
		return e.grandFinal(ctx, dest, res)
	}
	return nil
}

// grandFinal activates the bracket reset when the lower-bracket finalist
// won, and cancels it otherwise.
func (e *Engine) grandFinal(ctx context.Context, gf *bracket.Match, res *AdvancementResult) error {
	double, ok := e.strategy.(*bracket.DoubleElimination)
	if !ok || !e.stage.BracketReset {
		return nil
	}
	reset, err := e.graph.MatchAt(ctx, e.stage.ID, bracket.BracketResetKey())
	if err != nil {
		return fmt.Errorf("failed to get bracket reset match: %w", err)
	}
	if reset == nil {
		err := bracket.NewStructuralError(gf.ID, "bracket reset match is missing")
		e.log.Error("bracket structure broken", "error", err)
		return err
	}

	if !double.ResetNeeded(gf) || gf.IsBye {
		if reset.Status == bracket.MatchCancelled {
			return nil
		}
		prev := reset.Status
		reset.Status = bracket.MatchCancelled
		if err := e.graph.SaveMatch(ctx, reset, prev); err != nil {
			return fmt.Errorf("failed to cancel bracket reset: %w", err)
		}
		return e.record(ctx, reset, bracket.EventCancelled, map[string]any{"grand_final": gf.ID})
	}

	for _, edge := range double.Edges(gf) {
		team := gf.WinnerID
		if edge.Role == bracket.LoserRole {
			team = gf.LoserID
		}
		if err := e.fill(ctx, gf, edge, team, res); err != nil {
			return err
		}
	}
	res.ResetActivated = true
	e.log.Info("bracket reset activated", "winner_id", gf.WinnerID)
	return e.record(ctx, reset, bracket.EventResetActivated, map[string]any{"grand_final": gf.ID})
}

func (e *Engine) checkCompletion(ctx context.Context, m *bracket.Match, res *AdvancementResult) error {
	matches, err := e.graph.Matches(ctx, e.stage.ID)
	if err != nil {
		return fmt.Errorf("failed to get stage matches: %w", err)
	}

	if swiss, ok := e.strategy.(*bracket.Swiss); ok && swiss.NextRoundReady(matches, m.Round) {
		res.NextRound = m.Round + 1
	}
	if !e.strategy.Complete(matches) {
		return nil
	}

	res.StageComplete = true
	tournamentDone, err := e.graph.CompleteStage(ctx, e.stage.ID)
	if err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}
	res.TournamentComplete = tournamentDone
	return nil
}

// Start marks a scheduled match as being played.
func (e *Engine) Start(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return e.transition(ctx, matchID, bracket.MatchLive, bracket.EventStarted, nil,
		bracket.MatchScheduled)
}

// Dispute flags a result as contested. A disputed match can still be
// completed.
func (e *Engine) Dispute(ctx context.Context, matchID uuid.UUID, reason string) (*bracket.Match, error) {
	return e.transition(ctx, matchID, bracket.MatchDisputed, bracket.EventDisputed,
		map[string]string{"reason": reason}, bracket.MatchScheduled, bracket.MatchLive)
}

func (e *Engine) transition(ctx context.Context, matchID uuid.UUID, to bracket.MatchStatus, kind bracket.EventKind, payload any, from ...bracket.MatchStatus) (*bracket.Match, error) {
	m, err := e.graph.Match(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m.Status == to {
		return m, nil
	}
	allowed := false
	for _, s := range from {
		allowed = allowed || m.Status == s
	}
	if !allowed {
		return nil, bracket.NewConflictError(m.ID, "cannot move a %s match to %s", m.Status, to)
	}

	prev := m.Status
	m.Status = to
	if err := e.graph.SaveMatch(ctx, m, prev); err != nil {
		return nil, fmt.Errorf("failed to save match: %w", err)
	}
	if err := e.record(ctx, m, kind, payload); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) record(ctx context.Context, m *bracket.Match, kind bracket.EventKind, payload any) error {
	ev, err := bracket.NewMatchEvent(m, kind, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	if err := e.graph.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	return nil
}
