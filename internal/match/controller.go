// Package match owns the lifecycle of a single sparring match: it is the one
// entry point for every mutating command, serializes them behind a per-match
// lock, and composes the round timer, consensus engine, event ledger, and
// scoreboard projection.
//
// Reads of the scoreboard never take the write lock: each mutation publishes
// a fresh immutable snapshot through an atomic pointer swap.
package match

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/consensus"
	"github.com/tatami-systems/tatami/internal/domain/ledger"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/domain/projection"
	"github.com/tatami-systems/tatami/internal/domain/timer"
	"github.com/tatami-systems/tatami/pkg/logger"
)

// Sink receives persistence operations emitted by the controller. It must
// not block: implementations queue the op and return, so storage latency
// never stalls live scoring.
type Sink func(op store.Op)

// Controller drives one match. All mutating methods acquire the controller's
// lock; methods on different controllers proceed fully in parallel.
type Controller struct {
	mu sync.Mutex

	match       *model.Match
	assignments []model.AssessorAssignment
	judges      map[string]struct{}
	rounds      []model.Round
	ledger      *ledger.Ledger
	votes       *consensus.Engine
	clock       timer.Clock
	roundTimer  *timer.RoundTimer

	extraRounds int

	snapshot atomic.Pointer[model.ScoreboardSnapshot]
	sink     Sink
	onEnd    EndHook
	log      logger.Logger
}

// EndHook is called once when a match reaches ENDED, with the final match
// record and scoreboard. It runs under the match lock and must not call back
// into the controller.
type EndHook func(m model.Match, final *model.ScoreboardSnapshot, unresolvedTie bool)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithClock substitutes the clock used for round timing, for tests.
func WithClock(c timer.Clock) Option {
	return func(ctrl *Controller) {
		if c != nil {
			ctrl.clock = c
		}
	}
}

// WithSink sets the persistence sink. Without one, persistence ops are
// silently discarded (tests).
func WithSink(s Sink) Option {
	return func(ctrl *Controller) {
		if s != nil {
			ctrl.sink = s
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(ctrl *Controller) {
		if l != nil {
			ctrl.log = l
		}
	}
}

// WithEndHook registers a hook invoked when the match ends. Cancelled
// matches do not trigger it.
func WithEndHook(h EndHook) Option {
	return func(ctrl *Controller) {
		if h != nil {
			ctrl.onEnd = h
		}
	}
}

// New validates the match and seats its officials, returning a controller in
// the match's current state. A zero-status match starts PENDING.
func New(m *model.Match, assignments []model.AssessorAssignment, opts ...Option) (*Controller, error) {
	if err := validate(m, assignments); err != nil {
		return nil, err
	}

	ctrl := &Controller{
		match:       m,
		assignments: assignments,
		judges:      make(map[string]struct{}),
		ledger:      ledger.New(m.ID),
		votes:       consensus.New(m.Rules, assignments),
		clock:       timer.NewRealClock(),
		sink:        func(store.Op) {},
		log:         logger.Named("match"),
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	for _, a := range assignments {
		if a.Role == model.RoleJudge {
			ctrl.judges[a.UserID] = struct{}{}
		}
	}
	if ctrl.match.Status == "" {
		ctrl.match.Status = model.MatchPending
	}
	ctrl.roundTimer = timer.New(ctrl.clock, ctrl.onRoundExpired)

	ctrl.mu.Lock()
	ctrl.publishSnapshotLocked()
	ctrl.mu.Unlock()
	return ctrl, nil
}

// Rehydrate rebuilds a controller from persisted records after a restart.
// In-flight vote windows are not persisted; an in-progress round resumes
// paused with its remaining time intact so the lead official can resume.
func Rehydrate(m *model.Match, assignments []model.AssessorAssignment, rounds []model.Round, events []model.ScoreEvent, opts ...Option) (*Controller, error) {
	ctrl, err := New(m, assignments, opts...)
	if err != nil {
		return nil, err
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	ctrl.rounds = append(ctrl.rounds[:0], rounds...)
	ctrl.ledger = ledger.Rehydrate(m.ID, events)
	for _, r := range rounds {
		if r.Kind == model.RoundTieBreaker {
			ctrl.extraRounds++
		}
	}

	if m.Status == model.MatchInProgress {
		// The engine cannot know how much of the round ran before the
		// crash; resume conservatively from the recorded elapsed time
		// and hold the match paused.
		m.Status = model.MatchPaused
		if cur := ctrl.currentRoundLocked(); cur != nil && cur.Status == model.RoundInProgress {
			remaining := time.Duration(cur.ScheduledDurationSeconds-cur.ActualDurationSeconds) * time.Second
			if remaining < 0 {
				remaining = 0
			}
			ctrl.roundTimer.Start(cur.Number, remaining)
			ctrl.roundTimer.Pause()
		}
	}

	ctrl.publishSnapshotLocked()
	return ctrl, nil
}

func validate(m *model.Match, assignments []model.AssessorAssignment) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: match is nil", ErrValidation)
	case m.ID == "":
		return fmt.Errorf("%w: match id is empty", ErrValidation)
	case m.Rules.TotalRounds < 1:
		return fmt.Errorf("%w: total rounds must be at least 1", ErrValidation)
	case m.Rules.RoundDurationSeconds < 1:
		return fmt.Errorf("%w: round duration must be at least 1s", ErrValidation)
	case m.Rules.MaxExtraRounds < 0:
		return fmt.Errorf("%w: max extra rounds must not be negative", ErrValidation)
	case len(m.Rules.ScoreValues) == 0:
		return fmt.Errorf("%w: score values must not be empty", ErrValidation)
	}

	// Every allowed score value must map to an event kind, or an accepted
	// vote could not be recorded on the ledger.
	for _, v := range m.Rules.ScoreValues {
		if _, err := model.EventKindForScoreValue(v); err != nil {
			return fmt.Errorf("%w: score value %d has no event kind", ErrValidation, v)
		}
	}

	positions := make(map[int]string, len(assignments))
	for _, a := range assignments {
		if a.UserID == "" {
			return fmt.Errorf("%w: assignment without user id", ErrValidation)
		}
		if !a.Role.IsValid() {
			return fmt.Errorf("%w: unknown role %q", ErrValidation, a.Role)
		}
		if prev, taken := positions[a.Position]; taken {
			return fmt.Errorf("%w: position %d assigned to both %s and %s", ErrValidation, a.Position, prev, a.UserID)
		}
		positions[a.Position] = a.UserID
	}
	return nil
}

// ID returns the match id.
func (c *Controller) ID() string {
	return c.match.ID
}

// Snapshot returns the last published scoreboard. Lock-free; safe from any
// goroutine.
func (c *Controller) Snapshot() *model.ScoreboardSnapshot {
	return c.snapshot.Load()
}

// Scoreboard returns the last published scoreboard with the remaining round
// time read fresh from the timer. The timer carries its own lock, so readers
// never block on the match mutex.
func (c *Controller) Scoreboard() *model.ScoreboardSnapshot {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := *snap
	if c.roundTimer != nil {
		out.RemainingSeconds = int(c.roundTimer.Remaining() / time.Second)
	}
	return &out
}

// Rounds returns the round history in order.
func (c *Controller) Rounds() []model.Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Round, len(c.rounds))
	copy(out, c.rounds)
	return out
}

// Events returns the ledger contents, ascending or descending, optionally
// restricted to events after the given sequence number.
func (c *Controller) Events(descending bool, sinceSeq uint64) []model.ScoreEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sinceSeq > 0 {
		return c.ledger.Since(sinceSeq)
	}
	if descending {
		return c.ledger.Descending()
	}
	return c.ledger.Ascending()
}

// Match returns a copy of the match aggregate.
func (c *Controller) Match() model.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.match
}

// Assignments returns the seated officials.
func (c *Controller) Assignments() []model.AssessorAssignment {
	out := make([]model.AssessorAssignment, len(c.assignments))
	copy(out, c.assignments)
	return out
}

// OpenVoteWindows reports unresolved decision windows, for stats.
func (c *Controller) OpenVoteWindows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votes.OpenWindows()
}

func (c *Controller) currentRoundLocked() *model.Round {
	if len(c.rounds) == 0 {
		return nil
	}
	return &c.rounds[len(c.rounds)-1]
}

func (c *Controller) publishSnapshotLocked() {
	snap := projection.Build(c.match, c.roundRemainingLocked(), c.ledger.Ascending(), c.clock.Now())
	c.snapshot.Store(&snap)
}

func (c *Controller) roundRemainingLocked() time.Duration {
	if c.roundTimer == nil {
		return 0
	}
	return c.roundTimer.Remaining()
}

// RefreshSnapshot republishes the scoreboard so remaining time stays fresh
// between events. Called by the service ticker.
func (c *Controller) RefreshSnapshot() *model.ScoreboardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishSnapshotLocked()
	return c.snapshot.Load()
}

func (c *Controller) persist(op store.Op) {
	op.MatchID = c.match.ID
	c.sink(op)
}

// background context for timer-driven transitions; expiry callbacks have no
// request context.
var expiryCtx = context.Background()
