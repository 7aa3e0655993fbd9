package progression

import (
	"context"
	"database/sql"
	"sync"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

// MemoryGraph keeps one or more stages in memory. It backs previews and
// tests; every read hands out a copy.
type MemoryGraph struct {
	mu       sync.Mutex
	matches  map[uuid.UUID]*bracket.Match
	order    []uuid.UUID
	events   []bracket.MatchEvent
	finished map[uuid.UUID]bool
}

func NewMemoryGraph(matches []bracket.Match) *MemoryGraph {
	g := &MemoryGraph{
		matches:  make(map[uuid.UUID]*bracket.Match, len(matches)),
		finished: make(map[uuid.UUID]bool),
	}
	g.Add(matches...)
	return g
}

// Add inserts new matches, e.g. a freshly paired Swiss round.
func (g *MemoryGraph) Add(matches ...bracket.Match) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range matches {
		m := matches[i]
		g.matches[m.ID] = &m
		g.order = append(g.order, m.ID)
	}
}

// Remove drops a match. Only useful to simulate a broken graph.
func (g *MemoryGraph) Remove(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.matches, id)
}

func (g *MemoryGraph) Match(_ context.Context, id uuid.UUID) (*bracket.Match, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.matches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (g *MemoryGraph) MatchAt(_ context.Context, stageID uuid.UUID, key bracket.Key) (*bracket.Match, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.order {
		m, ok := g.matches[id]
		if ok && m.StageID == stageID && m.Key() == key {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (g *MemoryGraph) Matches(_ context.Context, stageID uuid.UUID) ([]bracket.Match, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []bracket.Match
	for _, id := range g.order {
		if m, ok := g.matches[id]; ok && m.StageID == stageID {
			out = append(out, *m)
		}
	}
	bracket.SortMatches(out)
	return out, nil
}

func (g *MemoryGraph) SaveMatch(_ context.Context, m *bracket.Match, prev bracket.MatchStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored, ok := g.matches[m.ID]
	if !ok || stored.Status != prev || stored.Version != m.Version {
		return bracket.NewConflictError(m.ID, "match changed since it was read")
	}
	m.Version++
	cp := *m
	g.matches[m.ID] = &cp
	return nil
}

func (g *MemoryGraph) AppendEvent(_ context.Context, ev bracket.MatchEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, ev)
	return nil
}

func (g *MemoryGraph) LastEvent(_ context.Context, matchID uuid.UUID, kind bracket.EventKind) (*bracket.MatchEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].MatchID == matchID && g.events[i].Kind == kind {
			ev := g.events[i]
			return &ev, nil
		}
	}
	return nil, nil
}

func (g *MemoryGraph) CompleteStage(_ context.Context, stageID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finished[stageID] = true
	return true, nil
}

// Events returns the history of one match in append order.
func (g *MemoryGraph) Events(matchID uuid.UUID) []bracket.MatchEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []bracket.MatchEvent
	for _, ev := range g.events {
		if ev.MatchID == matchID {
			out = append(out, ev)
		}
	}
	return out
}
