package bracket

import "github.com/google/uuid"

type Team struct {
	ID      uuid.UUID `db:"id" json:"id"`
	StageID uuid.UUID `db:"stage_id" json:"stage_id"`
	Name    string    `db:"name" json:"name"`
	Seed    int       `db:"seed" json:"seed"`
	Rating  int       `db:"rating" json:"rating"`
}
