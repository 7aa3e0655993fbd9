package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	// MatchPending has at least one unfilled slot.
	MatchPending   MatchStatus = "pending"
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
	MatchDisputed  MatchStatus = "disputed"
)

type Segment string

const (
	UpperSegment        Segment = "upper"
	LowerSegment        Segment = "lower"
	SwissSegment        Segment = "swiss"
	RoundRobinSegment   Segment = "round_robin"
	GrandFinalSegment   Segment = "grand_final"
	BracketResetSegment Segment = "bracket_reset"
)

type Slot int

const (
	Team1Slot Slot = 1
	Team2Slot Slot = 2
)

func (s Slot) Other() Slot {
	if s == Team1Slot {
		return Team2Slot
	}
	return Team1Slot
}

// ByeSource marks a slot that will never receive a team.
const ByeSource = "BYE"

type Match struct {
	ID      uuid.UUID `db:"id" json:"id"`
	StageID uuid.UUID `db:"stage_id" json:"stage_id"`

	// Position in the stage, the only structural link between matches
	Segment  Segment `db:"segment" json:"segment"`
	Round    int     `db:"round" json:"round"`
	Position int     `db:"bracket_position" json:"bracket_position"`

	Team1ID *uuid.UUID `db:"team1_id" json:"team1_id,omitempty"`
	Team2ID *uuid.UUID `db:"team2_id" json:"team2_id,omitempty"`

	// Symbolic origin of each slot, e.g. "W:UB-R1M2", "L:UB-R2M1" or BYE
	Team1Source *string `db:"team1_source" json:"team1_source,omitempty"`
	Team2Source *string `db:"team2_source" json:"team2_source,omitempty"`

	Team1Score *int        `db:"team1_score" json:"team1_score,omitempty"`
	Team2Score *int        `db:"team2_score" json:"team2_score,omitempty"`
	Status     MatchStatus `db:"status" json:"status"`

	WinnerID *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`
	LoserID  *uuid.UUID `db:"loser_id" json:"loser_id,omitempty"`
	Forfeit  bool       `db:"forfeit" json:"forfeit"`
	IsBye    bool       `db:"is_bye" json:"is_bye"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Key identifies a match by its position within a stage.
type Key struct {
	Segment  Segment
	Round    int
	Position int
}

func (m *Match) Key() Key {
	return Key{Segment: m.Segment, Round: m.Round, Position: m.Position}
}

func (m *Match) TeamAt(slot Slot) *uuid.UUID {
	if slot == Team1Slot {
		return m.Team1ID
	}
	return m.Team2ID
}

func (m *Match) SetTeam(slot Slot, id uuid.UUID) {
	if slot == Team1Slot {
		m.Team1ID = &id
	} else {
		m.Team2ID = &id
	}
}

func (m *Match) SourceAt(slot Slot) *string {
	if slot == Team1Slot {
		return m.Team1Source
	}
	return m.Team2Source
}

func (m *Match) SetSource(slot Slot, src string) {
	if slot == Team1Slot {
		m.Team1Source = &src
	} else {
		m.Team2Source = &src
	}
}

// SlotOf reports which slot the team occupies.
func (m *Match) SlotOf(team uuid.UUID) (Slot, bool) {
	if m.Team1ID != nil && *m.Team1ID == team {
		return Team1Slot, true
	}
	if m.Team2ID != nil && *m.Team2ID == team {
		return Team2Slot, true
	}
	return 0, false
}

func (m *Match) HasTeam(team uuid.UUID) bool {
	_, ok := m.SlotOf(team)
	return ok
}

func (m *Match) Ready() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

// ByeAt reports whether the slot can never be filled.
func (m *Match) ByeAt(slot Slot) bool {
	src := m.SourceAt(slot)
	return m.TeamAt(slot) == nil && src != nil && *src == ByeSource
}

func (m *Match) WinnerSlot() (Slot, bool) {
	if m.Status != MatchCompleted || m.WinnerID == nil {
		return 0, false
	}
	return m.SlotOf(*m.WinnerID)
}

// Differential is the score difference from the point of view of team.
func (m *Match) Differential(team uuid.UUID) int {
	if m.Team1Score == nil || m.Team2Score == nil {
		return 0
	}
	slot, ok := m.SlotOf(team)
	if !ok {
		return 0
	}
	if slot == Team1Slot {
		return *m.Team1Score - *m.Team2Score
	}
	return *m.Team2Score - *m.Team1Score
}

// Opponent returns the other team in the match, nil for a bye.
func (m *Match) Opponent(team uuid.UUID) *uuid.UUID {
	slot, ok := m.SlotOf(team)
	if !ok {
		return nil
	}
	return m.TeamAt(slot.Other())
}
