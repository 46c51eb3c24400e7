package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MatchScheduler runs the pending-PO sweep on a cron schedule. A tick that
// fires while the previous sweep is still running is skipped.
type MatchScheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	cfg     config.MatchSweepConfig
	logger  *logrus.Logger
	running atomic.Bool
	timeout time.Duration

	// base is cancelled by Stop so a running sweep ends at the next PO.
	base   context.Context
	cancel context.CancelFunc
}

func NewMatchScheduler(sweeper *Sweeper, cfg config.MatchSweepConfig, logger *logrus.Logger) (*MatchScheduler, error) {
	base, cancel := context.WithCancel(context.Background())
	s := &MatchScheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
		timeout: 2 * time.Hour,
		base:    base,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("unable to schedule match sweep %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *MatchScheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule": s.cfg.Schedule,
		"timezone": s.cfg.Location.String(),
		"workers":  s.cfg.Workers,
	}).Info("match sweep scheduler started")
}

// Stop prevents new ticks, cancels a running sweep and waits up to ctx for it
// to record its run as cancelled.
func (s *MatchScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *MatchScheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous match sweep still running; skipping tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	if _, err := s.sweeper.Sweep(ctx, SweepRequest{
		TriggeredBy:   models.SweepTriggeredSchedule,
		CorrelationId: uuid.NewString(),
	}); err != nil {
		config.LogError(s.logger, "workflow", "MatchScheduler.tick", "scheduled sweep could not start", nil, err)
	}
}
