package config_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/game"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.RoundDurationSeconds, convey.ShouldEqual, game.DefaultRoundDuration)
			convey.So(cfg.DecayMaxPoints, convey.ShouldEqual, 1000)
			convey.So(cfg.DecayMinPoints, convey.ShouldEqual, 100)
			convey.So(cfg.PayoutWorkers, convey.ShouldEqual, 4)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the genesis has no owner until one is configured", func() {
			convey.So(cfg.Genesis().Owner, convey.ShouldEqual, common.Address{})

			cfg.Owner = "0x00000000000000000000000000000000000000aa"
			convey.So(cfg.Genesis().Owner, convey.ShouldEqual, common.HexToAddress(cfg.Owner))
			convey.So(cfg.Genesis().RoundDurationSeconds, convey.ShouldEqual, cfg.RoundDurationSeconds)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"unknown level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"unknown format", func(c *config.Config) { c.LogFormat = "xml" }},
		{"bad owner", func(c *config.Config) { c.Owner = "alice" }},
		{"zero round duration", func(c *config.Config) { c.RoundDurationSeconds = 0 }},
		{"round duration past hour range", func(c *config.Config) { c.RoundDurationSeconds = game.MaxRoundDuration + 1 }},
		{"min above max", func(c *config.Config) { c.DecayMinPoints = c.DecayMaxPoints + 1 }},
		{"zero max points", func(c *config.Config) { c.DecayMaxPoints, c.DecayMinPoints = 0, 0 }},
		{"no workers", func(c *config.Config) { c.PayoutWorkers = 0 }},
		{"no queue", func(c *config.Config) { c.PayoutQueueSize = 0 }},
		{"negative retries", func(c *config.Config) { c.PayoutRetries = -1 }},
		{"negative dedupe", func(c *config.Config) { c.DedupeSize = -1 }},
		{"negative rate", func(c *config.Config) { c.RateLimitRPS = -1 }},
		{"no burst", func(c *config.Config) { c.RateLimitBurst = 0 }},
		{"empty metrics namespace", func(c *config.Config) { c.MetricsNamespace = "" }},
		{"bad metrics subsystem", func(c *config.Config) { c.MetricsSubsystem = "round-engine" }},
		{"unsorted buckets", func(c *config.Config) { c.MetricsLatencyBuckets = []float64{10, 1} }},
	}

	convey.Convey("Given invalid settings", t, func() {
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given rate limiting turned off", t, func() {
		cfg := config.New()
		cfg.RateLimitRPS, cfg.RateLimitBurst = 0, 0
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}
