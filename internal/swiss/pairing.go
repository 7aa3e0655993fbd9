// Package swiss pairs the next round of a Swiss stage from the current
// standings.
package swiss

import (
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/standings"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
)

const defaultMaxSearchSteps = 100_000

// ErrCannotPair is returned for an odd field when byes are not allowed.
var ErrCannotPair = bracket.NewValidationError("disable_byes", "odd number of teams cannot be paired without a bye")

type Config struct {
	AllowByes bool
	// MaxSearchSteps bounds the rematch-free search before falling back to
	// relaxed pairing.
	MaxSearchSteps int
	Logger         *slog.Logger
}

func DefaultConfig() Config {
	return Config{AllowByes: true, MaxSearchSteps: defaultMaxSearchSteps}
}

// ConfigFor derives the pairing rules from a stage's options.
func ConfigFor(opts bracket.Options, log *slog.Logger) Config {
	cfg := DefaultConfig()
	cfg.AllowByes = !opts.DisableByes
	cfg.Logger = log
	return cfg
}

// Record is a team's standing at pairing time.
type Record struct {
	TeamID   uuid.UUID `json:"team_id"`
	Name     string    `json:"name"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`
	Buchholz int       `json:"buchholz"`
}

func recordOf(s standings.Standing) Record {
	return Record{TeamID: s.TeamID, Name: s.Name, Wins: s.Wins, Losses: s.Losses, Buchholz: s.Buchholz}
}

// Pairing is one match of the next round. Team2 is nil for a bye.
type Pairing struct {
	Team1 Record  `json:"team1"`
	Team2 *Record `json:"team2,omitempty"`
	// Relaxed pairings are rematches taken because nothing else fit.
	Relaxed bool `json:"relaxed,omitempty"`
}

func (p Pairing) IsBye() bool { return p.Team2 == nil }

func (p Pairing) Pair() bracket.Pair {
	pair := bracket.Pair{Team1: p.Team1.TeamID}
	if p.Team2 != nil {
		pair.Team2 = utils.Ptr(p.Team2.TeamID)
	}
	return pair
}

func Pairs(pairings []Pairing) []bracket.Pair {
	out := make([]bracket.Pair, len(pairings))
	for i, p := range pairings {
		out[i] = p.Pair()
	}
	return out
}

// NextRound pairs every team once. Each win group is paired internally
// first; a group that is odd, or cannot pair without a rematch, sends its
// lowest-ranked teams down to the group below. When that fails a search
// over the whole field in standings order takes over, and only when no
// rematch-free round exists at all are rematches allowed, each one logged.
func NextRound(rows []standings.Standing, history *History, cfg Config) ([]Pairing, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxSearchSteps <= 0 {
		cfg.MaxSearchSteps = defaultMaxSearchSteps
	}

	ordered := make([]standings.Standing, len(rows))
	copy(ordered, rows)
	standings.SortSwiss(ordered)
	if len(ordered) == 0 {
		return nil, nil
	}

	if len(ordered)%2 == 0 {
		if out, _, ok := pairField(ordered, history, cfg.MaxSearchSteps); ok {
			return out, nil
		}
		return relaxed(ordered, history, log, nil), nil
	}

	if !cfg.AllowByes {
		return nil, ErrCannotPair
	}

	candidates := byeCandidates(ordered, history)
	budget := cfg.MaxSearchSteps
	for _, idx := range candidates {
		out, steps, ok := pairField(without(ordered, idx), history, budget)
		if ok {
			return append(out, Pairing{Team1: recordOf(ordered[idx])}), nil
		}
		budget -= steps
		if budget <= 0 {
			break
		}
	}

	bye := ordered[candidates[0]]
	return relaxed(without(ordered, candidates[0]), history, log, &bye), nil
}

// pairField looks for a rematch-free round over an even field, win groups
// first. It reports the search steps spent.
func pairField(rows []standings.Standing, history *History, limit int) ([]Pairing, int, bool) {
	out, steps, ok := byGroups(rows, history, limit)
	if ok {
		return out, steps, true
	}
	if steps >= limit {
		return nil, steps, false
	}
	s := newSearch(rows, history, limit-steps)
	pairs, ok := s.solve()
	steps += s.steps
	if !ok {
		return nil, steps, false
	}
	return s.pairings(pairs), steps, true
}

// byGroups pairs each win group on its own. The teams a group cannot pair
// float, lowest-ranked first, to the top of the group below.
func byGroups(rows []standings.Standing, history *History, limit int) ([]Pairing, int, bool) {
	var (
		out   []Pairing
		carry []standings.Standing
		steps int
	)
	groups := winGroups(rows)
	for gi, group := range groups {
		pool := append(append([]standings.Standing{}, carry...), group...)
		last := gi == len(groups)-1
		carry = nil

		paired := false
		for float := len(pool) % 2; float <= len(pool); float += 2 {
			if last && float > 0 {
				break
			}
			keep := pool[:len(pool)-float]
			s := newSearch(keep, history, limit-steps)
			pairs, ok := s.solve()
			steps += s.steps
			if ok {
				out = append(out, s.pairings(pairs)...)
				carry = append(carry, pool[len(keep):]...)
				paired = true
				break
			}
			if steps >= limit {
				return nil, steps, false
			}
		}
		if !paired {
			return nil, steps, false
		}
	}
	return out, steps, true
}

// winGroups splits standings-ordered rows into runs of equal wins.
func winGroups(rows []standings.Standing) [][]standings.Standing {
	var groups [][]standings.Standing
	for i, row := range rows {
		if i == 0 || row.Wins != rows[i-1].Wins {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], row)
	}
	return groups
}

// byeCandidates lists teams from the bottom of the standings up, those who
// never had a bye first.
func byeCandidates(ordered []standings.Standing, history *History) []int {
	var fresh, repeat []int
	for i := len(ordered) - 1; i >= 0; i-- {
		if history.HadBye(ordered[i].TeamID) {
			repeat = append(repeat, i)
		} else {
			fresh = append(fresh, i)
		}
	}
	return append(fresh, repeat...)
}

func without(rows []standings.Standing, idx int) []standings.Standing {
	out := make([]standings.Standing, 0, len(rows)-1)
	out = append(out, rows[:idx]...)
	return append(out, rows[idx+1:]...)
}

type search struct {
	rows    []standings.Standing
	history *History
	used    []bool
	pairs   [][2]int
	steps   int
	limit   int
}

func newSearch(rows []standings.Standing, history *History, limit int) *search {
	return &search{
		rows:    rows,
		history: history,
		used:    make([]bool, len(rows)),
		limit:   limit,
	}
}

func (s *search) solve() ([][2]int, bool) {
	if s.next() {
		return s.pairs, true
	}
	return nil, false
}

func (s *search) next() bool {
	i := 0
	for i < len(s.rows) && s.used[i] {
		i++
	}
	if i == len(s.rows) {
		return true
	}

	s.used[i] = true
	for j := i + 1; j < len(s.rows); j++ {
		if s.used[j] || s.history.Played(s.rows[i].TeamID, s.rows[j].TeamID) {
			continue
		}
		s.steps++
		if s.steps > s.limit {
			break
		}
		s.used[j] = true
		s.pairs = append(s.pairs, [2]int{i, j})
		if s.next() {
			return true
		}
		s.pairs = s.pairs[:len(s.pairs)-1]
		s.used[j] = false
	}
	s.used[i] = false
	return false
}

func (s *search) pairings(pairs [][2]int) []Pairing {
	out := make([]Pairing, 0, len(pairs))
	for _, p := range pairs {
		opp := recordOf(s.rows[p[1]])
		out = append(out, Pairing{Team1: recordOf(s.rows[p[0]]), Team2: &opp})
	}
	return out
}

// relaxed pairs top-down, preferring an unplayed opponent but taking the
// next free team when every remaining one is a rematch.
func relaxed(rows []standings.Standing, history *History, log *slog.Logger, bye *standings.Standing) []Pairing {
	used := make([]bool, len(rows))
	out := make([]Pairing, 0, len(rows)/2+1)
	for i := range rows {
		if used[i] {
			continue
		}
		used[i] = true

		pick, rematch := -1, false
		for j := i + 1; j < len(rows); j++ {
			if !used[j] && !history.Played(rows[i].TeamID, rows[j].TeamID) {
				pick = j
				break
			}
		}
		if pick < 0 {
			for j := i + 1; j < len(rows); j++ {
				if !used[j] {
					pick, rematch = j, true
					break
				}
			}
		}
		if pick < 0 {
			continue
		}
		used[pick] = true

		opp := recordOf(rows[pick])
		out = append(out, Pairing{Team1: recordOf(rows[i]), Team2: &opp, Relaxed: rematch})
		if rematch {
			log.Warn("relaxed swiss pairing, teams meet again",
				"team1", rows[i].TeamID, "team2", rows[pick].TeamID,
				"record1", rows[i].Record(), "record2", rows[pick].Record())
		}
	}
	if bye != nil {
		out = append(out, Pairing{Team1: recordOf(*bye)})
	}
	return out
}
