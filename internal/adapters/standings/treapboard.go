package standings

import (
	"context"
	"sync"
	"time"

	"github.com/tatami-systems/tatami/pkg/metrics"
)

// Treap-based, in-memory Board implementation.
//
// Each competition has its own treap ordered points DESC, then wins DESC,
// then competitorID ASC (deterministic). In-order traversal of a
// competition's treap produces its standings from best to worst.

// record stores the accumulated totals for one competitor.
type record struct {
	name    string
	points  int
	wins    int
	matches int
}

// treap node
type node struct {
	id     string
	points int
	wins   int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPoints, aWins, aID) should appear before
// (bPoints, bWins, bID) in the standings (better rows first).
func less(aPoints, aWins int, aID string, bPoints, bWins int, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints // more points ranks earlier
	}
	if aWins != bWins {
		return aWins > bWins
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// rowPriority derives a heap priority from a row's totals so better rows
// stay near the top of the treap.
func rowPriority(points, wins int) uint64 {
	return uint64(points)<<16 | uint64(wins&0xffff)
}

func insert(n *node, id string, points, wins int) *node {
	if n == nil {
		return &node{id: id, points: points, wins: wins, prio: rowPriority(points, wins), size: 1}
	}
	if less(points, wins, id, n.points, n.wins, n.id) {
		n.left = insert(n.left, id, points, wins)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points, wins)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points, wins int) *node {
	if n == nil {
		return nil
	}
	if points == n.points && wins == n.wins && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points, wins)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points, wins)
		}
	} else if less(points, wins, id, n.points, n.wins, n.id) {
		n.left = deleteNode(n.left, id, points, wins)
	} else {
		n.right = deleteNode(n.right, id, points, wins)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (best rows first).
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, entryFor(n.id, rec))
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// collectAll appends all entries in rank order (best rows first).
func collectAll(n *node, records map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, records, out)
	if rec, ok := records[n.id]; ok {
		*out = append(*out, entryFor(n.id, rec))
	}
	collectAll(n.right, records, out)
}

func entryFor(id string, rec record) Entry {
	return Entry{
		CompetitorID: id,
		Name:         rec.name,
		Points:       rec.points,
		Wins:         rec.wins,
		Matches:      rec.matches,
	}
}

// assignRanksWithTies assigns ranks with tie handling: rows with the same
// points and wins share a rank, and the next distinct row takes the next
// consecutive rank.
func assignRanksWithTies(entries []Entry) {
	currentRank := 0
	for i := range entries {
		if i == 0 || entries[i].Points != entries[i-1].Points || entries[i].Wins != entries[i-1].Wins {
			currentRank++
		}
		entries[i].Rank = currentRank
	}
}

// board holds one competition's treap and row records.
type board struct {
	root *node
	byID map[string]record
}

// TreapBoard implements Board with one treap per competition.
type TreapBoard struct {
	mu     sync.RWMutex
	boards map[string]*board

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapBoard constructs a standings board with configuration options.
func NewTreapBoard(ctx context.Context, opts ...Option) *TreapBoard {
	b := &TreapBoard{
		boards:                make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.stopChan = make(chan struct{})
	b.startMetricsUpdater(ctx)
	return b
}

// Close gracefully shuts down the background metrics goroutine.
func (b *TreapBoard) Close() error {
	select {
	case <-b.stopChan:
		// Channel already closed
	default:
		close(b.stopChan)
	}
	b.wg.Wait()
	return nil
}

// RecordResult implements Board.RecordResult with O(log n) expected time.
func (b *TreapBoard) RecordResult(ctx context.Context, competitionID string, result Result) error {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.boards[competitionID]
	if !ok {
		cb = &board{byID: make(map[string]record)}
		b.boards[competitionID] = cb
	}

	rec, ok := cb.byID[result.CompetitorID]
	if ok {
		cb.root = deleteNode(cb.root, result.CompetitorID, rec.points, rec.wins)
	}
	rec.points += result.Points
	rec.matches++
	if result.Won {
		rec.wins++
	}
	if result.Name != "" {
		rec.name = result.Name
	}
	cb.byID[result.CompetitorID] = rec
	cb.root = insert(cb.root, result.CompetitorID, rec.points, rec.wins)
	return nil
}

// Rank returns the current row for a competitor in O(n) over its board.
func (b *TreapBoard) Rank(ctx context.Context, competitionID, competitorID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	cb, ok := b.boards[competitionID]
	if !ok {
		metrics.RecordErrorByComponent("standings", "not_found")
		return Entry{}, ErrNotFound
	}
	if _, ok := cb.byID[competitorID]; !ok {
		metrics.RecordErrorByComponent("standings", "not_found")
		return Entry{}, ErrNotFound
	}

	all := make([]Entry, 0, len(cb.byID))
	collectAll(cb.root, cb.byID, &all)
	assignRanksWithTies(all)

	for _, entry := range all {
		if entry.CompetitorID == competitorID {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// TopN returns the top N rows ordered by points desc.
func (b *TreapBoard) TopN(ctx context.Context, competitionID string, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("standings", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	cb, ok := b.boards[competitionID]
	if !ok {
		return []Entry{}, nil
	}

	out := make([]Entry, 0, n)
	collectTopN(cb.root, n, cb.byID, &out)

	// Ranks must reflect the whole board, not just the requested slice;
	// a cut-off row can share totals with the first row below the cut.
	all := make([]Entry, 0, len(cb.byID))
	collectAll(cb.root, cb.byID, &all)
	assignRanksWithTies(all)
	rankByID := make(map[string]int, len(all))
	for _, entry := range all {
		rankByID[entry.CompetitorID] = entry.Rank
	}
	for i := range out {
		out[i].Rank = rankByID[out[i].CompetitorID]
	}
	return out, nil
}

// Count returns the number of ranked competitors in a competition.
func (b *TreapBoard) Count(ctx context.Context, competitionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cb, ok := b.boards[competitionID]; ok {
		return len(cb.byID)
	}
	return 0
}

// startMetricsUpdater starts a background goroutine that publishes board
// size gauges at the configured interval.
func (b *TreapBoard) startMetricsUpdater(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.updateMetrics()
			}
		}
	}()
}

func (b *TreapBoard) updateMetrics() {
	b.mu.RLock()
	competitions := len(b.boards)
	competitors := 0
	for _, cb := range b.boards {
		competitors += len(cb.byID)
	}
	b.mu.RUnlock()

	metrics.UpdateStandingsCompetitions(competitions)
	metrics.UpdateStandingsCompetitors(competitors)
}
