package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// MemoryGateway is a map-backed Gateway used by tests and when no Redis URL
// is configured. Values are copied on the way in and out.
type MemoryGateway struct {
	mu          sync.RWMutex
	matches     map[string]model.Match
	rounds      map[string]map[int]model.Round
	events      map[string][]model.ScoreEvent
	snapshots   map[string]model.ScoreboardSnapshot
	assignments map[string][]model.AssessorAssignment
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		matches:     make(map[string]model.Match),
		rounds:      make(map[string]map[int]model.Round),
		events:      make(map[string][]model.ScoreEvent),
		snapshots:   make(map[string]model.ScoreboardSnapshot),
		assignments: make(map[string][]model.AssessorAssignment),
	}
}

func (g *MemoryGateway) LoadMatch(_ context.Context, id string) (*model.Match, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m
	return &out, nil
}

func (g *MemoryGateway) SaveMatch(_ context.Context, m *model.Match) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.matches[m.ID] = *m
	return nil
}

func (g *MemoryGateway) SaveRound(_ context.Context, r *model.Round) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	byNumber, ok := g.rounds[r.MatchID]
	if !ok {
		byNumber = make(map[int]model.Round)
		g.rounds[r.MatchID] = byNumber
	}
	byNumber[r.Number] = *r
	return nil
}

func (g *MemoryGateway) ListRounds(_ context.Context, matchID string) ([]model.Round, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	byNumber := g.rounds[matchID]
	out := make([]model.Round, 0, len(byNumber))
	for _, r := range byNumber {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (g *MemoryGateway) AppendEvent(_ context.Context, e *model.ScoreEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[e.MatchID] = append(g.events[e.MatchID], *e)
	return nil
}

func (g *MemoryGateway) ListEvents(_ context.Context, matchID string) ([]model.ScoreEvent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.ScoreEvent, len(g.events[matchID]))
	copy(out, g.events[matchID])
	return out, nil
}

func (g *MemoryGateway) SaveSnapshot(_ context.Context, s *model.ScoreboardSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[s.MatchID] = *s
	return nil
}

func (g *MemoryGateway) LoadSnapshot(_ context.Context, matchID string) (*model.ScoreboardSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.snapshots[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (g *MemoryGateway) SaveAssessorAssignments(_ context.Context, matchID string, assignments []model.AssessorAssignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.AssessorAssignment, len(assignments))
	copy(out, assignments)
	g.assignments[matchID] = out
	return nil
}

func (g *MemoryGateway) ListAssessorAssignments(_ context.Context, matchID string) ([]model.AssessorAssignment, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.AssessorAssignment, len(g.assignments[matchID]))
	copy(out, g.assignments[matchID])
	return out, nil
}
