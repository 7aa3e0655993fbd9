package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
)

type StageStatus string

const (
	StageUpcoming  StageStatus = "upcoming"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
)

type Format string

const (
	SingleEliminationFormat Format = "single_elimination"
	DoubleEliminationFormat Format = "double_elimination"
	SwissFormat             Format = "swiss"
	RoundRobinFormat        Format = "round_robin"
)

func (f Format) Elimination() bool {
	return f == SingleEliminationFormat || f == DoubleEliminationFormat
}

type Seeding string

const (
	// SequentialSeeding pairs the given order 1v2, 3v4, ...
	SequentialSeeding Seeding = "sequential"
	// StandardSeeding folds the seed list, 1v8, 4v5, 2v7, 3v6 for eight teams.
	StandardSeeding Seeding = "standard"
)

// Options is the rule set a stage is built and advanced with. It is stored
// with the stage and never mutated after the bracket is built.
type Options struct {
	BestOf        int     `db:"best_of" json:"best_of"`
	BracketReset  bool    `db:"bracket_reset" json:"bracket_reset"`
	Seeding       Seeding `db:"seeding" json:"seeding"`
	SwissRounds   int     `db:"swiss_rounds" json:"swiss_rounds"`
	SwissRandom   bool    `db:"swiss_random" json:"swiss_random"`
	RandomSeed    int64   `db:"random_seed" json:"random_seed"`
	DisableByes   bool    `db:"disable_byes" json:"disable_byes"`
	AutoPairSwiss bool    `db:"auto_pair_swiss" json:"auto_pair_swiss"`
}

func (o Options) Validate() error {
	if o.BestOf < 0 || (o.BestOf > 0 && o.BestOf%2 == 0) {
		return NewValidationError("best_of", "must be a positive odd number, got %d", o.BestOf)
	}
	if o.SwissRounds < 0 {
		return NewValidationError("swiss_rounds", "must not be negative, got %d", o.SwissRounds)
	}
	switch o.Seeding {
	case "", SequentialSeeding, StandardSeeding:
	default:
		return NewValidationError("seeding", "unknown seeding %q", o.Seeding)
	}
	return nil
}

// WinsNeeded is the number of games that decides a best-of series.
func (o Options) WinsNeeded() int {
	if o.BestOf <= 1 {
		return 0
	}
	return o.BestOf/2 + 1
}

type Tournament struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	Status    TournamentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

type Stage struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	TournamentID uuid.UUID   `db:"tournament_id" json:"tournament_id"`
	Name         string      `db:"name" json:"name"`
	Format       Format      `db:"format" json:"format"`
	Status       StageStatus `db:"status" json:"status"`
	TeamCount    int         `db:"team_count" json:"team_count"`
	Options
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
