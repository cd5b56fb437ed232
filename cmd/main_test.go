package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/eventwatch/internal/adapters/repository"
	"github.com/okian/eventwatch/internal/config"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func newFeedServer() *httptest.Server {
	mux := http.NewServeMux()
	for _, path := range []string{"/events.json", "/raids.json", "/eggs.json"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("[]"))
		})
	}
	return httptest.NewServer(mux)
}

func testConfig(dir, feedURL string) *config.Config {
	cfg := config.New()
	cfg.LogLevel = "error"
	cfg.Addr = ""
	cfg.StateDir = dir
	cfg.Timezone = "UTC"
	cfg.EventsURL = feedURL + "/events.json"
	cfg.RaidsURL = feedURL + "/raids.json"
	cfg.EggsURL = feedURL + "/eggs.json"
	cfg.EventWebhooks = []string{"https://discord.com/api/webhooks/1/events-token"}
	cfg.RaidWebhooks = []string{"https://discord.com/api/webhooks/2/raids-token"}
	return cfg
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a valid configuration", t, func() {
		cfg := testConfig(t.TempDir(), "http://127.0.0.1:0")

		convey.Convey("When building the service", func() {
			svc, err := build(cfg, repository.NewMemoryStore(), logger.Nop())

			convey.Convey("Then it is assembled but not running", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.Running(), convey.ShouldBeFalse)
				convey.So(svc.GetStats()["started"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Nowhere/Special"
			_, err := build(cfg, repository.NewMemoryStore(), logger.Nop())

			convey.Convey("Then building fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRunOnce(t *testing.T) {
	convey.Convey("Given a feed with nothing to announce", t, func() {
		srv := newFeedServer()
		defer srv.Close()

		dir := t.TempDir()
		cfg := testConfig(dir, srv.URL)
		cfg.RunOnce = true
		cfg.KeepRawEvents = true

		convey.Convey("When running a single cycle", func() {
			err := run(context.Background(), cfg, logger.Nop())

			convey.Convey("Then the ledger and raw mirror are written", func() {
				convey.So(err, convey.ShouldBeNil)
				_, statErr := os.Stat(filepath.Join(dir, repository.NotifiedFile))
				convey.So(statErr, convey.ShouldBeNil)
				raw, readErr := os.ReadFile(filepath.Join(dir, rawEventsFile))
				convey.So(readErr, convey.ShouldBeNil)
				convey.So(string(raw), convey.ShouldEqual, "[]")
			})
		})

		convey.Convey("When the ledger driver is unknown", func() {
			cfg.LedgerDriver = "etcd"
			err := run(context.Background(), cfg, logger.Nop())

			convey.Convey("Then startup is refused", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
