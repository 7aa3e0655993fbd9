package bracket

import (
	"math"
	"math/bits"
	"sort"

	"github.com/google/uuid"
)

type SingleElimination struct {
	size    int
	rounds  int
	seeding Seeding
}

func NewSingleElimination(teamCount int, opts Options) *SingleElimination {
	size := calcBracketSize(teamCount)
	return &SingleElimination{
		size:    size,
		rounds:  int(math.Log2(float64(size))),
		seeding: opts.Seeding,
	}
}

func (s *SingleElimination) Format() Format { return SingleEliminationFormat }

func (s *SingleElimination) Build(stageID uuid.UUID, teams []Team) (*BuildResult, error) {
	set := newMatchSet(stageID, SingleEliminationFormat)
	buildUpper(set, s.size, s.rounds)
	seatRoundOne(set, teams, s.size, s.seeding)
	set.resolveByes(s)
	return set.result(SingleEliminationFormat, s.rounds, 0, s.size-1, nil), nil
}

func (s *SingleElimination) Edges(m *Match) []Edge {
	if m.Segment != UpperSegment || m.Round >= s.rounds {
		return nil
	}
	return []Edge{upperWinnerEdge(m)}
}

func (s *SingleElimination) Complete(matches []Match) bool {
	final := findMatch(matches, Key{Segment: UpperSegment, Round: s.rounds, Position: 1})
	return final != nil && final.Status == MatchCompleted
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs folds the seed list so that the top seeds can only meet
// in the latest possible round.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// generateSequentialPairs pairs index i with i+1. The first bracketSize-n
// indexes get a bye (-1), so byes land on the highest seeds. When there are
// byes the matches are laid out in bit-reversed order, which puts seeds 1
// and 2 in opposite halves.
func generateSequentialPairs(n, bracketSize int) [][2]int {
	byes := bracketSize - n
	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < byes; i++ {
		pairs = append(pairs, [2]int{i, -1})
	}
	for i := byes; i+1 < n; i += 2 {
		pairs = append(pairs, [2]int{i, i + 1})
	}
	if byes == 0 {
		return pairs
	}

	width := bits.Len(uint(len(pairs))) - 1
	spread := make([][2]int, len(pairs))
	for k, pair := range pairs {
		spread[bits.Reverse(uint(k))>>(bits.UintSize-width)] = pair
	}
	return spread
}

// buildUpper creates every upper-bracket match with empty slots, each later
// slot pointing at the match that feeds it.
func buildUpper(set *matchSet, size, rounds int) {
	for r := 1; r <= rounds; r++ {
		matchesInRound := size >> r
		for p := 1; p <= matchesInRound; p++ {
			m := set.add(UpperSegment, r, p)
			if r > 1 {
				m.SetSource(Team1Slot, set.ref(WinnerRole, Key{UpperSegment, r - 1, 2*p - 1}))
				m.SetSource(Team2Slot, set.ref(WinnerRole, Key{UpperSegment, r - 1, 2 * p}))
			}
		}
	}
}

func seatRoundOne(set *matchSet, teams []Team, size int, seeding Seeding) {
	ordered := make([]Team, len(teams))
	copy(ordered, teams)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seed < ordered[j].Seed })

	var pairs [][2]int
	if seeding == StandardSeeding {
		pairs = generateRound1Pairs(size)
	} else {
		pairs = generateSequentialPairs(len(ordered), size)
	}

	seat := func(m *Match, slot Slot, idx int) {
		if idx < 0 || idx >= len(ordered) {
			m.SetSource(slot, ByeSource)
			return
		}
		m.SetTeam(slot, ordered[idx].ID)
	}
	for i, pair := range pairs {
		m := set.get(Key{UpperSegment, 1, i + 1})
		seat(m, Team1Slot, pair[0])
		seat(m, Team2Slot, pair[1])
	}
}

func upperWinnerEdge(m *Match) Edge {
	return Edge{
		From: m.Key(),
		Role: WinnerRole,
		To:   Key{UpperSegment, m.Round + 1, parentPosition(m.Position)},
		Slot: paritySlot(m.Position),
	}
}
