// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
//
// The service owns the registry of live match controllers, the bounded
// persistence queue behind them, and the worker pool that drains it. Each
// match is a single-writer state machine; the service only routes calls to
// the right controller and never holds its own lock across a controller
// call.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	opqueue "github.com/tatami-systems/tatami/internal/adapters/mq/queue"
	workerpool "github.com/tatami-systems/tatami/internal/adapters/mq/worker"
	"github.com/tatami-systems/tatami/internal/adapters/standings"
	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/domain/timer"
	"github.com/tatami-systems/tatami/internal/match"
	"github.com/tatami-systems/tatami/pkg/logger"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

// Service implements the API dependencies for the match engine.
type Service struct {
	mu      sync.RWMutex
	matches map[string]*match.Controller

	// Core components
	gateway store.Gateway
	queue   opqueue.Queue
	pool    *workerpool.Pool
	board   *standings.TreapBoard
	clock   timer.Clock

	// Configuration
	workerCount      int
	queueSize        int
	snapshotInterval time.Duration
	defaultRules     model.Rules

	// State
	started bool
	stopCh  chan struct{}
	flushWG sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGateway sets the persistence gateway.
func WithGateway(g store.Gateway) Option {
	return func(s *Service) {
		if g != nil {
			s.gateway = g
		}
	}
}

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the persistence queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSnapshotInterval sets the period of the background snapshot flush.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithDefaultRules sets the ruleset applied when an admitted match leaves
// fields unset.
func WithDefaultRules(r model.Rules) Option {
	return func(s *Service) {
		s.defaultRules = r
	}
}

// WithClock sets the time source handed to match controllers.
func WithClock(c timer.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		matches:          make(map[string]*match.Controller),
		workerCount:      runtime.NumCPU(),
		queueSize:        10000,
		snapshotInterval: 5 * time.Second,
		clock:            timer.NewRealClock(),
		defaultRules: model.Rules{
			AllowExtraRound: true,
			MaxExtraRounds:  1,
			TieBreakRule:    "weigh_in_weight",
			ScoreValues:     []int{1, 2},
		},
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.gateway == nil {
		s.gateway = store.NewMemoryGateway()
		s.logger.Info(ctx, "using in-memory gateway")
	}

	s.queue = opqueue.NewInMemoryQueue(
		opqueue.WithCapacity(s.queueSize),
		opqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.gateway)
	s.pool.Start(ctx)
	s.board = standings.NewTreapBoard(ctx)

	s.flushWG.Add(1)
	go s.flushLoop()

	s.started = true
	s.logger.Info(ctx, "match engine started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("snapshot_interval", s.snapshotInterval),
	)
	return nil
}

// Stop gracefully shuts down the service. Pending persistence operations
// are drained by the worker pool before it stops.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping match engine...")

	close(s.stopCh)
	s.flushWG.Wait()

	// One last snapshot of every live match before the queue closes.
	for _, ctrl := range s.matches {
		snap := ctrl.RefreshSnapshot()
		s.queue.Enqueue(ctx, store.Op{Kind: store.OpSaveSnapshot, MatchID: snap.MatchID, Snapshot: snap})
	}

	// Close the queue first so the workers drain whatever is buffered,
	// including the final snapshots above, before they exit.
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.board != nil {
		_ = s.board.Close()
	}

	s.started = false
	s.logger.Info(ctx, "match engine stopped")
}

// Admit registers a new match with its officials and persists the initial
// records. The match starts in PENDING until a START command arrives.
func (s *Service) Admit(ctx context.Context, m *model.Match, assignments []model.AssessorAssignment) (*model.Match, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: match is nil", match.ErrValidation)
	}
	s.applyRuleDefaults(&m.Rules)
	m.Status = model.MatchPending

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if _, exists := s.matches[m.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}

	ctrl, err := match.New(m, assignments,
		match.WithClock(s.clock),
		match.WithSink(s.sink),
		match.WithEndHook(s.recordStanding),
	)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.matches[m.ID] = ctrl
	s.mu.Unlock()

	// The admission records are the one write that must not be dropped:
	// a match the store never heard of cannot be recovered.
	admitted := ctrl.Match()
	if !s.queue.Enqueue(ctx, store.Op{Kind: store.OpSaveMatch, MatchID: m.ID, Match: &admitted}) ||
		!s.queue.Enqueue(ctx, store.Op{Kind: store.OpSaveAssignments, MatchID: m.ID, Assignments: assignments}) {
		s.mu.Lock()
		delete(s.matches, m.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: admission for %s", ErrBackpressure, m.ID)
	}

	s.updateActiveMatches()
	s.logger.Info(ctx, "match admitted",
		logger.String("match_id", m.ID),
		logger.Int("total_rounds", m.Rules.TotalRounds),
		logger.Int("officials", len(assignments)),
	)
	got := ctrl.Match()
	return &got, nil
}

// Control applies a lifecycle command to a match.
func (s *Service) Control(ctx context.Context, matchID string, action model.ControlAction) (match.Outcome, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return match.Outcome{}, err
	}
	out, err := ctrl.Apply(ctx, action)
	if err != nil {
		return match.Outcome{}, err
	}
	s.updateActiveMatches()
	return out, nil
}

// CastVote records an assessor's vote on a match.
func (s *Service) CastVote(ctx context.Context, matchID, assessorID string, corner model.Corner, score int) (match.VoteResult, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return match.VoteResult{}, err
	}
	return ctrl.CastVote(ctx, assessorID, corner, score)
}

// RecordDirectEvent appends a judge-recorded event to a match.
func (s *Service) RecordDirectEvent(ctx context.Context, matchID, judgeID string, round, timestampInRound int, corner model.Corner, kind model.EventKind) (model.ScoreEvent, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return model.ScoreEvent{}, err
	}
	return ctrl.RecordDirectEvent(ctx, judgeID, round, timestampInRound, corner, kind)
}

// ClearVoteWindow discards the unresolved votes for a corner of a match.
func (s *Service) ClearVoteWindow(ctx context.Context, matchID string, corner model.Corner) error {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return err
	}
	return ctrl.ClearVoteWindow(ctx, corner)
}

// Scoreboard returns the latest published snapshot for a match.
func (s *Service) Scoreboard(ctx context.Context, matchID string) (*model.ScoreboardSnapshot, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return ctrl.Scoreboard(), nil
}

// Rounds returns the round records of a match in order.
func (s *Service) Rounds(ctx context.Context, matchID string) ([]model.Round, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return ctrl.Rounds(), nil
}

// Events returns the event feed of a match ordered by sequence.
func (s *Service) Events(ctx context.Context, matchID string, descending bool, sinceSeq uint64) ([]model.ScoreEvent, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return ctrl.Events(descending, sinceSeq), nil
}

// Match returns the lifecycle record of a match.
func (s *Service) Match(ctx context.Context, matchID string) (model.Match, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	return ctrl.Match(), nil
}

// Assignments returns the officials assigned to a match.
func (s *Service) Assignments(ctx context.Context, matchID string) ([]model.AssessorAssignment, error) {
	ctrl, err := s.controller(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return ctrl.Assignments(), nil
}

// Standings returns the top rows of a competition's standings board.
func (s *Service) Standings(ctx context.Context, competitionID string, limit int) ([]standings.Entry, error) {
	s.mu.RLock()
	board := s.board
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	return board.TopN(ctx, competitionID, limit)
}

// CompetitorStanding returns one competitor's row in a competition.
func (s *Service) CompetitorStanding(ctx context.Context, competitionID, competitorID string) (standings.Entry, error) {
	s.mu.RLock()
	board := s.board
	started := s.started
	s.mu.RUnlock()
	if !started {
		return standings.Entry{}, ErrNotStarted
	}
	return board.Rank(ctx, competitionID, competitorID)
}

// recordStanding folds an ended match into its competition's standings
// board. Runs as the controller's end hook.
func (s *Service) recordStanding(m model.Match, final *model.ScoreboardSnapshot, unresolvedTie bool) {
	if s.board == nil || m.CompetitionID == "" || final == nil {
		return
	}

	ctx := context.Background()
	redWon := !unresolvedTie && final.Red.Score > final.Blue.Score
	blueWon := !unresolvedTie && final.Blue.Score > final.Red.Score

	results := []standings.Result{
		{CompetitorID: m.Red.ID, Name: m.Red.Name, Points: final.Red.Score, Won: redWon},
		{CompetitorID: m.Blue.ID, Name: m.Blue.Name, Points: final.Blue.Score, Won: blueWon},
	}
	for _, r := range results {
		if err := s.board.RecordResult(ctx, m.CompetitionID, r); err != nil {
			s.logger.Warn(ctx, "standings update failed",
				logger.String("match_id", m.ID),
				logger.String("competitor_id", r.CompetitorID),
				logger.Error(err),
			)
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
	}

	if s.started {
		active := 0
		for _, ctrl := range s.matches {
			if !ctrl.Match().Status.Terminal() {
				active++
			}
		}
		stats["matches"] = len(s.matches)
		stats["active_matches"] = active
		stats["queue_length"] = s.queue.Len(context.Background())
	}

	return stats
}

// controller returns the live controller for a match, rehydrating it from
// the gateway on first access after a restart.
func (s *Service) controller(ctx context.Context, matchID string) (*match.Controller, error) {
	s.mu.RLock()
	ctrl, ok := s.matches[matchID]
	started := s.started
	s.mu.RUnlock()
	if ok {
		return ctrl, nil
	}
	if !started {
		return nil, ErrNotStarted
	}

	m, err := s.gateway.LoadMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
		}
		return nil, fmt.Errorf("load match %s: %w", matchID, err)
	}
	assignments, err := s.gateway.ListAssessorAssignments(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load assignments for %s: %w", matchID, err)
	}
	rounds, err := s.gateway.ListRounds(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load rounds for %s: %w", matchID, err)
	}
	events, err := s.gateway.ListEvents(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", matchID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.matches[matchID]; ok {
		// Lost the race to another rehydrating reader.
		return ctrl, nil
	}
	ctrl, err = match.Rehydrate(m, assignments, rounds, events,
		match.WithClock(s.clock),
		match.WithSink(s.sink),
		match.WithEndHook(s.recordStanding),
	)
	if err != nil {
		return nil, fmt.Errorf("rehydrate match %s: %w", matchID, err)
	}
	s.matches[matchID] = ctrl
	s.logger.Info(ctx, "match rehydrated from store",
		logger.String("match_id", matchID),
		logger.Int("rounds", len(rounds)),
		logger.Int("events", len(events)),
	)
	return ctrl, nil
}

// sink is the fire-and-forget write path handed to every controller.
func (s *Service) sink(op store.Op) {
	if s.queue == nil {
		return
	}
	if !s.queue.Enqueue(context.Background(), op) {
		s.logger.Warn(context.Background(), "persistence op dropped",
			logger.String("kind", string(op.Kind)),
			logger.String("match_id", op.MatchID),
		)
	}
}

// flushLoop periodically republishes and persists snapshots so that a crash
// loses at most one interval of derived state. Ledger events are persisted
// as they happen; snapshots are only a recovery shortcut.
func (s *Service) flushLoop() {
	defer s.flushWG.Done()

	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.flushSnapshots()
		}
	}
}

func (s *Service) flushSnapshots() {
	s.mu.RLock()
	ctrls := make([]*match.Controller, 0, len(s.matches))
	for _, ctrl := range s.matches {
		ctrls = append(ctrls, ctrl)
	}
	s.mu.RUnlock()

	ctx := context.Background()
	for _, ctrl := range ctrls {
		snap := ctrl.RefreshSnapshot()
		if snap == nil {
			continue
		}
		s.queue.Enqueue(ctx, store.Op{Kind: store.OpSaveSnapshot, MatchID: snap.MatchID, Snapshot: snap})
	}
	metrics.RecordSnapshotFlush(time.Now().Unix())
}

func (s *Service) applyRuleDefaults(r *model.Rules) {
	if r.AllowExtraRound && r.MaxExtraRounds == 0 {
		r.MaxExtraRounds = s.defaultRules.MaxExtraRounds
	}
	if r.TieBreakRule == "" {
		r.TieBreakRule = s.defaultRules.TieBreakRule
	}
	if len(r.ScoreValues) == 0 {
		r.ScoreValues = append([]int(nil), s.defaultRules.ScoreValues...)
	}
}

func (s *Service) updateActiveMatches() {
	s.mu.RLock()
	active := 0
	for _, ctrl := range s.matches {
		if !ctrl.Match().Status.Terminal() {
			active++
		}
	}
	s.mu.RUnlock()
	metrics.UpdateActiveMatches(active)
}
