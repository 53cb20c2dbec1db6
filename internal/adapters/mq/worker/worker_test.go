package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/mq/queue"
	"github.com/tatami-systems/tatami/internal/adapters/mq/worker"
	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestInMemoryWorker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a worker draining a queue into a memory gateway", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		gw := store.NewMemoryGateway()
		w := worker.NewInMemoryWorker(q, gw, worker.WithName("worker-1"))

		runCtx, cancel := context.WithCancel(ctx)
		go w.Run(runCtx)
		defer cancel()
		defer q.Close()

		Convey("When a save-match op is enqueued", func() {
			ok := q.Enqueue(ctx, store.Op{
				Kind:    store.OpSaveMatch,
				MatchID: "m-1",
				Match:   &model.Match{ID: "m-1", Status: model.MatchInProgress},
			})
			So(ok, ShouldBeTrue)

			Convey("Then the match lands in the gateway", func() {
				waitFor(t, func() bool {
					m, err := gw.LoadMatch(ctx, "m-1")
					return err == nil && m.Status == model.MatchInProgress
				})
			})
		})

		Convey("When ops for one match arrive in order", func() {
			for _, st := range []model.MatchStatus{model.MatchPending, model.MatchInProgress, model.MatchEnded} {
				ok := q.Enqueue(ctx, store.Op{
					Kind:    store.OpSaveMatch,
					MatchID: "m-2",
					Match:   &model.Match{ID: "m-2", Status: st},
				})
				So(ok, ShouldBeTrue)
			}

			Convey("Then the last write wins", func() {
				waitFor(t, func() bool {
					m, err := gw.LoadMatch(ctx, "m-2")
					return err == nil && m.Status == model.MatchEnded
				})
			})
		})

		Convey("When an op fails", func() {
			// AppendEvent with a nil event fails in the gateway; the
			// worker must log it and keep draining.
			So(q.Enqueue(ctx, store.Op{Kind: store.OpAppendEvent, MatchID: "m-3"}), ShouldBeTrue)
			So(q.Enqueue(ctx, store.Op{
				Kind:    store.OpSaveMatch,
				MatchID: "m-3",
				Match:   &model.Match{ID: "m-3"},
			}), ShouldBeTrue)

			Convey("Then later ops still go through", func() {
				waitFor(t, func() bool {
					_, err := gw.LoadMatch(ctx, "m-3")
					return err == nil
				})
			})
		})
	})

	Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		gw := store.NewMemoryGateway()
		w := worker.NewInMemoryWorker(q, gw)

		go w.Run(context.Background())

		Convey("Shutdown applies ops buffered before the queue closed", func() {
			for i := 0; i < 5; i++ {
				ok := q.Enqueue(ctx, store.Op{
					Kind:    store.OpSaveMatch,
					MatchID: fmt.Sprintf("m-%d", i),
					Match:   &model.Match{ID: fmt.Sprintf("m-%d", i), Status: model.MatchEnded},
				})
				So(ok, ShouldBeTrue)
			}
			So(q.Close(), ShouldBeNil)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)

			for i := 0; i < 5; i++ {
				m, err := gw.LoadMatch(ctx, fmt.Sprintf("m-%d", i))
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, model.MatchEnded)
			}
		})

		Convey("Shutdown returns once the loop has stopped", func() {
			So(q.Close(), ShouldBeNil)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)
		})
	})
}
