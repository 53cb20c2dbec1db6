package main

import (
	"context"
	"os"
	"testing"

	app "github.com/tatami-systems/tatami/internal/app"
	"github.com/tatami-systems/tatami/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("TATAMI_ADDR", ":8080")
			_ = os.Setenv("TATAMI_PERSIST_QUEUE_SIZE", "1000")
			_ = os.Setenv("TATAMI_PERSIST_WORKERS", "4")
			defer func() {
				_ = os.Unsetenv("TATAMI_ADDR")
				_ = os.Unsetenv("TATAMI_PERSIST_QUEUE_SIZE")
				_ = os.Unsetenv("TATAMI_PERSIST_WORKERS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PersistQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.PersistWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing gateway selection", func() {
			convey.Convey("An empty redis_url selects the in-memory gateway", func() {
				cfg := config.New()
				gw, err := buildGateway(context.Background(), cfg)
				convey.So(err, convey.ShouldBeNil)
				convey.So(gw, convey.ShouldNotBeNil)
			})

			convey.Convey("A malformed redis_url is rejected", func() {
				cfg := config.New()
				cfg.RedisURL = "not-a-url"
				_, err := buildGateway(context.Background(), cfg)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithWorkerCount(8),
					app.WithQueueSize(2000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}
