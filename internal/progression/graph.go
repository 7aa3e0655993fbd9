package progression

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

// Graph is the storage contract of the engine. One Complete call runs all of
// its reads and writes through a single Graph, which callers back with one
// transaction so a failure leaves nothing half-applied.
type Graph interface {
	// Match returns sql.ErrNoRows when the id is unknown.
	Match(ctx context.Context, id uuid.UUID) (*bracket.Match, error)
	// MatchAt returns nil, nil when no match sits at key.
	MatchAt(ctx context.Context, stageID uuid.UUID, key bracket.Key) (*bracket.Match, error)
	Matches(ctx context.Context, stageID uuid.UUID) ([]bracket.Match, error)
	// SaveMatch writes m only if the stored row still has status prev and
	// version m.Version, then bumps m.Version. Otherwise it returns a
	// *bracket.ConflictError.
	SaveMatch(ctx context.Context, m *bracket.Match, prev bracket.MatchStatus) error
	AppendEvent(ctx context.Context, ev bracket.MatchEvent) error
	// LastEvent returns nil, nil when the match has no event of that kind.
	LastEvent(ctx context.Context, matchID uuid.UUID, kind bracket.EventKind) (*bracket.MatchEvent, error)
	// CompleteStage marks the stage completed and reports whether that
	// completed its tournament as well.
	CompleteStage(ctx context.Context, stageID uuid.UUID) (bool, error)
}
