package bracket

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Swiss builds round 1 only; later rounds come from the pairing engine.
type Swiss struct {
	teamCount   int
	rounds      int
	random      bool
	randomSeed  int64
	disableByes bool
}

func NewSwiss(teamCount int, opts Options) *Swiss {
	return &Swiss{
		teamCount:   teamCount,
		rounds:      SwissRounds(teamCount, opts.SwissRounds),
		random:      opts.SwissRandom,
		randomSeed:  opts.RandomSeed,
		disableByes: opts.DisableByes,
	}
}

// SwissRounds is the override when set, otherwise ceil(log2(n)).
func SwissRounds(teamCount, override int) int {
	if override > 0 {
		return override
	}
	if teamCount < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(teamCount))))
}

func (s *Swiss) Format() Format { return SwissFormat }

func (s *Swiss) Rounds() int { return s.rounds }

// Pair is one proposed match; a nil Team2 is a bye.
type Pair struct {
	Team1 uuid.UUID
	Team2 *uuid.UUID
}

func (s *Swiss) Build(stageID uuid.UUID, teams []Team) (*BuildResult, error) {
	if s.disableByes && len(teams)%2 != 0 {
		return nil, NewValidationError("teams", "odd team count %d needs byes but byes are disabled", len(teams))
	}

	ordered := make([]Team, len(teams))
	copy(ordered, teams)
	if s.random {
		seed := s.randomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	} else {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seed < ordered[j].Seed })
	}

	// Top half meets bottom half: i vs i+n/2, the odd team out gets the bye.
	half := len(ordered) / 2
	pairs := make([]Pair, 0, half+1)
	for i := 0; i < half; i++ {
		opponent := ordered[i+half].ID
		pairs = append(pairs, Pair{Team1: ordered[i].ID, Team2: &opponent})
	}
	if len(ordered)%2 != 0 {
		pairs = append(pairs, Pair{Team1: ordered[len(ordered)-1].ID})
	}

	matches := NewSwissRound(stageID, 1, pairs)
	res := &BuildResult{
		Matches:         matches,
		RoundCount:      s.rounds,
		ExpectedMatches: s.rounds * ((s.teamCount + 1) / 2),
		Notation:        make(map[uuid.UUID]string, len(matches)),
	}
	for i := range matches {
		res.Notation[matches[i].ID] = Notation(SwissFormat, &matches[i])
	}
	return res, nil
}

// NewSwissRound turns pairings into match records for one round. Byes are
// created completed with the win credited to the single team.
func NewSwissRound(stageID uuid.UUID, round int, pairs []Pair) []Match {
	matches := make([]Match, 0, len(pairs))
	for i, p := range pairs {
		team1 := p.Team1
		m := Match{
			ID:       uuid.New(),
			StageID:  stageID,
			Segment:  SwissSegment,
			Round:    round,
			Position: i + 1,
			Team1ID:  &team1,
			Status:   MatchScheduled,
		}
		if p.Team2 != nil {
			team2 := *p.Team2
			m.Team2ID = &team2
		} else {
			m.SetSource(Team2Slot, ByeSource)
			m.IsBye = true
			m.Status = MatchCompleted
			m.WinnerID = &team1
		}
		matches = append(matches, m)
	}
	return matches
}

func (s *Swiss) Edges(*Match) []Edge { return nil }

func (s *Swiss) Complete(matches []Match) bool {
	last := MaxRound(matches, SwissSegment)
	return last >= s.rounds && RoundComplete(matches, SwissSegment, last)
}

// NextRoundReady reports whether round has settled and another round is due.
func (s *Swiss) NextRoundReady(matches []Match, round int) bool {
	return round < s.rounds && MaxRound(matches, SwissSegment) == round &&
		RoundComplete(matches, SwissSegment, round)
}
