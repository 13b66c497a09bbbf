package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/avielmenter/CritiQL/internal/app"
	"github.com/avielmenter/CritiQL/internal/config"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		_ = os.Setenv("CRITIQL_ADDR", ":8181")
		_ = os.Setenv("CRITIQL_DB_PATH", ":memory:")
		_ = os.Setenv("CRITIQL_SYNC_WORKERS", "2")
		defer func() {
			_ = os.Unsetenv("CRITIQL_ADDR")
			_ = os.Unsetenv("CRITIQL_DB_PATH")
			_ = os.Unsetenv("CRITIQL_SYNC_WORKERS")
		}()

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When loading configuration", func() {
			convey.Convey("Then env overrides are applied", func() {
				convey.So(cfg.Addr, convey.ShouldEqual, ":8181")
				convey.So(cfg.DBPath, convey.ShouldEqual, ":memory:")
				convey.So(cfg.SyncWorkers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When building the service from configuration", func() {
			svc := newService(cfg, logger.Get())
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.Convey("Then the stats endpoint reports the configuration", func() {
				w := httptest.NewRecorder()
				newMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				var stats app.Stats
				convey.So(json.Unmarshal(w.Body.Bytes(), &stats), convey.ShouldBeNil)
				convey.So(stats.Started, convey.ShouldBeTrue)
				convey.So(stats.Workers, convey.ShouldEqual, 2)
				convey.So(stats.CurrentCampaign, convey.ShouldEqual, cfg.CurrentCampaign)
			})

			convey.Convey("Then the health endpoint serves metrics", func() {
				w := httptest.NewRecorder()
				newMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When updating system metrics", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When the metrics updaters see a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			svc := app.New()

			convey.Convey("Then they return immediately", func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
				convey.So(metrics.GetRegistry(), convey.ShouldNotBeNil)
			})
		})
	})
}
