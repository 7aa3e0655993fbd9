package bracket

import (
	"sort"

	"github.com/google/uuid"
)

type Role string

const (
	WinnerRole Role = "winner"
	LoserRole  Role = "loser"
)

// Edge is one advancement relation of the bracket DAG: the team taking Role
// in From moves into slot Slot of To.
type Edge struct {
	From Key  `json:"from"`
	Role Role `json:"role"`
	To   Key  `json:"to"`
	Slot Slot `json:"slot"`
	// Conditional edges only apply when the grand final is won from slot 2.
	Conditional bool `json:"conditional,omitempty"`
}

type Bye struct {
	Round  int       `json:"round"`
	TeamID uuid.UUID `json:"team_id"`
}

type BuildResult struct {
	Matches         []Match              `json:"matches"`
	RoundCount      int                  `json:"round_count"`
	LowerRoundCount int                  `json:"lower_round_count,omitempty"`
	ExpectedMatches int                  `json:"expected_matches"`
	Notation        map[uuid.UUID]string `json:"notation"`
	Byes            []Bye                `json:"byes,omitempty"`
}

// Strategy is implemented once per format.
type Strategy interface {
	Format() Format
	// Build produces the initial match set. Swiss only builds round 1.
	Build(stageID uuid.UUID, teams []Team) (*BuildResult, error)
	// Edges decodes where the winner and loser of m go next.
	Edges(m *Match) []Edge
	// Complete reports whether the terminal match(es) of the stage are done.
	Complete(matches []Match) bool
}

func NewStrategy(format Format, teamCount int, opts Options) (Strategy, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if teamCount < 2 {
		return nil, NewValidationError("teams", "at least 2 teams are required, got %d", teamCount)
	}
	switch format {
	case SingleEliminationFormat:
		return NewSingleElimination(teamCount, opts), nil
	case DoubleEliminationFormat:
		return NewDoubleElimination(teamCount, opts), nil
	case SwissFormat:
		return NewSwiss(teamCount, opts), nil
	case RoundRobinFormat:
		return NewRoundRobin(teamCount), nil
	default:
		return nil, NewValidationError("format", "unknown format %q", format)
	}
}

func ForStage(s *Stage) (Strategy, error) {
	return NewStrategy(s.Format, s.TeamCount, s.Options)
}

// Build validates the input and builds the initial bracket for a stage.
func Build(stageID uuid.UUID, format Format, teams []Team, opts Options) (*BuildResult, error) {
	seeded, err := prepareTeams(stageID, teams)
	if err != nil {
		return nil, err
	}
	strategy, err := NewStrategy(format, len(seeded), opts)
	if err != nil {
		return nil, err
	}
	return strategy.Build(stageID, seeded)
}

// prepareTeams copies the roster, fills in missing seeds from list order and
// rejects duplicates.
func prepareTeams(stageID uuid.UUID, teams []Team) ([]Team, error) {
	if len(teams) == 0 {
		return nil, NewValidationError("teams", "team list is empty")
	}
	if len(teams) == 1 {
		return nil, NewValidationError("teams", "a single team cannot form a bracket")
	}
	seen := make(map[uuid.UUID]bool, len(teams))
	seeds := make(map[int]uuid.UUID, len(teams))
	out := make([]Team, len(teams))
	for i, t := range teams {
		if t.ID == uuid.Nil {
			return nil, NewValidationError("teams", "team %d has no id", i+1)
		}
		if seen[t.ID] {
			return nil, NewValidationError("teams", "team %s is listed twice", t.ID)
		}
		seen[t.ID] = true
		if t.Seed == 0 {
			t.Seed = i + 1
		}
		if other, ok := seeds[t.Seed]; ok {
			return nil, NewValidationError("teams", "seed %d is shared by %s and %s", t.Seed, other, t.ID)
		}
		seeds[t.Seed] = t.ID
		t.StageID = stageID
		out[i] = t
	}
	return out, nil
}

// RoundComplete reports whether every match of a segment round is settled.
func RoundComplete(matches []Match, segment Segment, round int) bool {
	found := false
	for i := range matches {
		m := &matches[i]
		if m.Segment != segment || m.Round != round {
			continue
		}
		found = true
		if m.Status != MatchCompleted && m.Status != MatchCancelled {
			return false
		}
	}
	return found
}

// MaxRound is the highest round present for a segment.
func MaxRound(matches []Match, segment Segment) int {
	max := 0
	for i := range matches {
		if matches[i].Segment == segment && matches[i].Round > max {
			max = matches[i].Round
		}
	}
	return max
}

func findMatch(matches []Match, key Key) *Match {
	for i := range matches {
		if matches[i].Key() == key {
			return &matches[i]
		}
	}
	return nil
}

// matchSet holds a bracket while it is being built.
type matchSet struct {
	stageID   uuid.UUID
	qualified bool
	byKey     map[Key]*Match
	ordered   []*Match
}

func newMatchSet(stageID uuid.UUID, format Format) *matchSet {
	return &matchSet{
		stageID:   stageID,
		qualified: qualifiedNotation(format),
		byKey:     make(map[Key]*Match),
	}
}

func (s *matchSet) add(segment Segment, round, position int) *Match {
	m := &Match{
		ID:       uuid.New(),
		StageID:  s.stageID,
		Segment:  segment,
		Round:    round,
		Position: position,
		Status:   MatchPending,
	}
	s.byKey[m.Key()] = m
	s.ordered = append(s.ordered, m)
	return m
}

func (s *matchSet) get(key Key) *Match {
	return s.byKey[key]
}

func (s *matchSet) ref(role Role, key Key) string {
	return SourceRef(role, key.Notation(s.qualified))
}

// resolveByes settles every match that has a team on one side and a slot
// that can never be filled on the other, repeating until nothing changes.
func (s *matchSet) resolveByes(strategy Strategy) {
	for changed := true; changed; {
		changed = false
		for _, m := range s.ordered {
			if m.Status == MatchCompleted || m.Status == MatchCancelled {
				continue
			}
			bye1, bye2 := m.ByeAt(Team1Slot), m.ByeAt(Team2Slot)
			var winner *uuid.UUID
			switch {
			case bye1 && bye2:
			case bye1 && m.Team2ID != nil:
				winner = m.Team2ID
			case bye2 && m.Team1ID != nil:
				winner = m.Team1ID
			default:
				continue
			}

			m.IsBye = true
			m.Status = MatchCompleted
			m.WinnerID = winner
			for _, e := range strategy.Edges(m) {
				if e.Conditional {
					continue
				}
				dest := s.get(e.To)
				if dest == nil {
					continue
				}
				if e.Role == WinnerRole && winner != nil {
					dest.SetTeam(e.Slot, *winner)
				} else {
					dest.SetSource(e.Slot, ByeSource)
				}
			}
			changed = true
		}
	}
}

func (s *matchSet) result(format Format, rounds, lowerRounds, expected int, byes []Bye) *BuildResult {
	res := &BuildResult{
		Matches:         make([]Match, 0, len(s.ordered)),
		RoundCount:      rounds,
		LowerRoundCount: lowerRounds,
		ExpectedMatches: expected,
		Notation:        make(map[uuid.UUID]string, len(s.ordered)),
		Byes:            byes,
	}
	for _, m := range s.ordered {
		if m.Status == MatchPending && m.Ready() {
			m.Status = MatchScheduled
		}
		if m.ByeAt(Team1Slot) || m.ByeAt(Team2Slot) {
			m.IsBye = true
		}
		res.Matches = append(res.Matches, *m)
		res.Notation[m.ID] = Notation(format, m)
	}
	SortMatches(res.Matches)
	return res
}

var segmentOrder = map[Segment]int{
	UpperSegment:        0,
	SwissSegment:        0,
	RoundRobinSegment:   0,
	LowerSegment:        1,
	GrandFinalSegment:   2,
	BracketResetSegment: 3,
}

// SortMatches orders matches by segment, round and position.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if segmentOrder[a.Segment] != segmentOrder[b.Segment] {
			return segmentOrder[a.Segment] < segmentOrder[b.Segment]
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.Position < b.Position
	})
}

func parentPosition(position int) int {
	return (position + 1) / 2
}

func paritySlot(position int) Slot {
	if position%2 != 0 {
		return Team1Slot
	}
	return Team2Slot
}
