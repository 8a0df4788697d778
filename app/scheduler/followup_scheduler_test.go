package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	businessflow "github.com/amirphl/dialflow/business_flow"
	"github.com/amirphl/dialflow/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatch struct {
	sweeps atomic.Int32
	result *businessflow.SweepResult
	err    error
}

func (d *fakeDispatch) Sweep(context.Context) (*businessflow.SweepResult, error) {
	d.sweeps.Add(1)
	return d.result, d.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewFollowupScheduler(t *testing.T) {
	s, err := NewFollowupScheduler(&fakeDispatch{}, config.SchedulerConfig{TimeZone: "America/New_York"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.interval)
	assert.Equal(t, "America/New_York", s.location.String())

	_, err = NewFollowupScheduler(&fakeDispatch{}, config.SchedulerConfig{TimeZone: "Mars/Olympus"}, quietLogger())
	assert.Error(t, err)
}

func TestFollowupSchedulerRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsSweepResult", func(t *testing.T) {
		d := &fakeDispatch{result: &businessflow.SweepResult{Due: 2, Dispatched: 2}}
		s, err := NewFollowupScheduler(d, config.SchedulerConfig{}, quietLogger())
		require.NoError(t, err)

		result, err := s.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Dispatched)
		assert.Equal(t, int32(1), d.sweeps.Load())
	})

	t.Run("PropagatesFailure", func(t *testing.T) {
		d := &fakeDispatch{err: assert.AnError}
		s, err := NewFollowupScheduler(d, config.SchedulerConfig{}, quietLogger())
		require.NoError(t, err)

		_, err = s.RunOnce(ctx)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		d := &fakeDispatch{result: &businessflow.SweepResult{}}
		s, err := NewFollowupScheduler(d, config.SchedulerConfig{}, quietLogger())
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = s.RunOnce(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, d.sweeps.Load())
	})
}

func TestFollowupSchedulerStartRunsImmediately(t *testing.T) {
	d := &fakeDispatch{result: &businessflow.SweepResult{}}
	s, err := NewFollowupScheduler(d, config.SchedulerConfig{DispatcherInterval: time.Hour}, quietLogger())
	require.NoError(t, err)

	stop := s.Start(context.Background())
	assert.Eventually(t, func() bool { return d.sweeps.Load() == 1 }, time.Second, 10*time.Millisecond)
	stop()
}
