// Package scheduler runs the background dispatcher that executes due follow-up steps
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/dialflow/app/middleware"
	businessflow "github.com/amirphl/dialflow/business_flow"
	"github.com/amirphl/dialflow/config"
	"github.com/amirphl/dialflow/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// FollowupScheduler ticks the dispatcher on a fixed interval in the
// configured zone
type FollowupScheduler struct {
	dispatch businessflow.DispatchFlow
	interval time.Duration
	location *time.Location
	logger   *logrus.Entry
}

func NewFollowupScheduler(dispatch businessflow.DispatchFlow, cfg config.SchedulerConfig, logger *logrus.Logger) (*FollowupScheduler, error) {
	interval := cfg.DispatcherInterval
	if interval <= 0 {
		interval = time.Minute
	}
	location, err := utils.LoadLocation(cfg.TimeZone, "UTC")
	if err != nil {
		return nil, err
	}
	return &FollowupScheduler{
		dispatch: dispatch,
		interval: interval,
		location: location,
		logger:   logger.WithField("component", "dispatcher"),
	}, nil
}

// Start registers the sweep job, runs one sweep right away and returns a
// stop function that waits for a running sweep to finish
func (s *FollowupScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	cronLogger := cron.PrintfLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		s.logger.WithError(err).Error("failed to register dispatcher job")
		cancel()
		return func() {}
	}

	go func() { _, _ = s.RunOnce(ctx) }()
	c.Start()
	s.logger.WithFields(logrus.Fields{
		"interval":  s.interval.String(),
		"time_zone": s.location.String(),
	}).Info("dispatcher started")

	return func() {
		cancel()
		<-c.Stop().Done()
		s.logger.Info("dispatcher stopped")
	}
}

// RunOnce performs a single sweep and exports its metrics
func (s *FollowupScheduler) RunOnce(ctx context.Context) (*businessflow.SweepResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result, err := s.dispatch.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("dispatcher sweep failed")
		middleware.RecordSweep(middleware.SweepStats{}, err)
		return nil, err
	}

	middleware.RecordSweep(middleware.SweepStats{
		Busy:       result.Busy,
		Exhausted:  result.Exhausted,
		Dispatched: result.Dispatched,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Duration:   result.Duration,
	}, nil)

	if result.Busy {
		s.logger.Debug("previous sweep still running, skipped")
		return result, nil
	}
	if result.Due > 0 {
		s.logger.WithFields(logrus.Fields{
			"due":        result.Due,
			"dispatched": result.Dispatched,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
			"exhausted":  result.Exhausted,
			"duration":   result.Duration.String(),
		}).Info("dispatcher sweep finished")
	}
	return result, nil
}
