package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MatchSweepConfig controls the scheduled sweep.
//
// Env overrides (optional):
// - MATCH_SWEEP_SCHEDULE (default "*/15 * * * *")
// - MATCH_SWEEP_BATCH_SIZE (default 500)
// - MATCH_SWEEP_WORKERS (default 8)
// - MATCH_TIMEZONE (default Asia/Yangon)
type MatchSweepConfig struct {
	Schedule  string
	BatchSize int
	Workers   int
	Location  *time.Location
}

func NewDefaultMatchSweepConfig() MatchSweepConfig {
	cfg := MatchSweepConfig{
		Schedule:  stringFromEnv("MATCH_SWEEP_SCHEDULE", "*/15 * * * *"),
		BatchSize: intFromEnv("MATCH_SWEEP_BATCH_SIZE", 500),
		Workers:   intFromEnv("MATCH_SWEEP_WORKERS", 8),
		Location:  time.UTC,
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	tz := stringFromEnv("MATCH_TIMEZONE", "Asia/Yangon")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		GetLogger().WithFields(logrus.Fields{
			"field":    "MATCH_TIMEZONE",
			"timezone": tz,
		}).WithError(err).Warn("invalid timezone; using UTC")
	} else {
		cfg.Location = loc
	}
	return cfg
}
