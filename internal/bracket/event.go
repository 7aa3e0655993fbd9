package bracket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated        EventKind = "created"
	EventStarted        EventKind = "started"
	EventDisputed       EventKind = "disputed"
	EventCompleted      EventKind = "completed"
	EventAdvanced       EventKind = "advanced"
	EventBye            EventKind = "bye"
	EventResetActivated EventKind = "reset_activated"
	EventCancelled      EventKind = "cancelled"
)

// MatchEvent is one entry of a match's append-only history.
type MatchEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MatchID   uuid.UUID `db:"match_id" json:"match_id"`
	StageID   uuid.UUID `db:"stage_id" json:"stage_id"`
	Kind      EventKind `db:"kind" json:"kind"`
	Payload   string    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func NewMatchEvent(m *Match, kind EventKind, payload any) (MatchEvent, error) {
	ev := MatchEvent{
		ID:        uuid.New(),
		MatchID:   m.ID,
		StageID:   m.StageID,
		Kind:      kind,
		Payload:   "{}",
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return ev, err
		}
		ev.Payload = string(b)
	}
	return ev, nil
}
