package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/clink/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Backend, convey.ShouldEqual, "memory")
				convey.So(cfg.PairWindowMS, convey.ShouldEqual, 2500)
				convey.So(cfg.NotifyWorkers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CLINK_ADDR", ":8080")
			_ = os.Setenv("CLINK_BACKEND", "redis")
			_ = os.Setenv("CLINK_REDIS_ADDR", "redis:6379")
			_ = os.Setenv("CLINK_DAILY_PAIR_ENFORCEMENT", "false")
			_ = os.Setenv("CLINK_PAIR_WINDOW_MS", "2000")
			_ = os.Setenv("CLINK_CREDIT_POLICY", "completer")
			_ = os.Setenv("CLINK_ALLOWED_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Backend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.DailyPairEnforcement, convey.ShouldBeFalse)
				convey.So(cfg.PairWindowMS, convey.ShouldEqual, 2000)
				convey.So(cfg.CreditPolicy, convey.ShouldEqual, "completer")
				convey.So(cfg.Origins(), convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# shared deployment
addr: ":9090"
backend: redis
redis_addr: "cache:6379"
redis_key_prefix: "party"
strict_verification: true
bot_token: "123:abc"
init_data_max_age_sec: 3600
notify_workers: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLINK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
				convey.So(cfg.RedisKeyPrefix, convey.ShouldEqual, "party")
				convey.So(cfg.StrictVerification, convey.ShouldBeTrue)
				convey.So(cfg.InitDataMaxAgeSec, convey.ShouldEqual, 3600)
				convey.So(cfg.NotifyWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.RetentionMS, convey.ShouldEqual, 5000) // default kept
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
notify_workers: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLINK_CONFIG", tmpFile)
			_ = os.Setenv("CLINK_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.NotifyWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("CLINK_CONFIG", "/nonexistent/clink.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file is not valid YAML", func() {
			tmpFile := createTempConfigFile("addr: [unterminated")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CLINK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value does not fit its type", func() {
			_ = os.Setenv("CLINK_PAIR_WINDOW_MS", "soon")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the loaded values are invalid", func() {
			_ = os.Setenv("CLINK_STRICT_VERIFICATION", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "bot_token")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "clink-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
