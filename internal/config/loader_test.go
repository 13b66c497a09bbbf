package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avielmenter/CritiQL/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SyncQueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.Documents, convey.ShouldBeEmpty)
				convey.So(cfg.NameBlocklist, convey.ShouldContain, "N/A")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CRITIQL_ADDR", ":8080")
			_ = os.Setenv("CRITIQL_SYNC_QUEUE_SIZE", "4")
			_ = os.Setenv("CRITIQL_MAX_QUERY_LIMIT", "50")
			_ = os.Setenv("CRITIQL_DOCUMENTS", "sheet-one:1, sheet-two:2")
			_ = os.Setenv("CRITIQL_NAME_BLOCKLIST", "Nobody,Somebody")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SyncQueueSize, convey.ShouldEqual, 4)
				convey.So(cfg.MaxQueryLimit, convey.ShouldEqual, 50)
				convey.So(cfg.Documents, convey.ShouldResemble, map[string]int{"sheet-one": 1, "sheet-two": 2})
				convey.So(cfg.NameBlocklist, convey.ShouldResemble, []string{"Nobody", "Somebody"})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := writeFile(t, "config.yaml", `
addr: ":9090"
db_path: "/tmp/rolls.db"
current_campaign: 2
sync_workers: 1
documents:
  sheet-one: 1
  sheet-two: 2
name_blocklist: ["X"]
`)
			_ = os.Setenv("CRITIQL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			convey.Convey("Then it should load from the file", func() {
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/rolls.db")
				convey.So(cfg.CurrentCampaign, convey.ShouldEqual, 2)
				convey.So(cfg.Documents, convey.ShouldResemble, map[string]int{"sheet-one": 1, "sheet-two": 2})
				convey.So(cfg.NameBlocklist, convey.ShouldResemble, []string{"X"})
			})

			convey.Convey("And environment variables should override file values", func() {
				_ = os.Setenv("CRITIQL_ADDR", ":8081")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.CurrentCampaign, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a .env file is given", func() {
			dotenv := writeFile(t, "test.env", "CRITIQL_SHEETS_API_KEY=from-dotenv\nCRITIQL_ADDR=:7000\n")
			_ = os.Setenv("CRITIQL_ENV_FILE", dotenv)
			_ = os.Setenv("CRITIQL_ADDR", ":7001")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills only unset variables", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SheetsAPIKey, convey.ShouldEqual, "from-dotenv")
				convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
			})
		})

		convey.Convey("When loading config with a missing file", func() {
			_ = os.Setenv("CRITIQL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid values", func() {
			_ = os.Setenv("CRITIQL_SYNC_WORKERS", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the documents list is malformed", func() {
			_ = os.Setenv("CRITIQL_DOCUMENTS", "sheet-one")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}
