package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRejectsInvalidJobs(t *testing.T) {
	s := NewScheduler()

	_, err := s.Schedule(JobConfig{}, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	_, err = s.Schedule(JobConfig{Expression: "@every 1s"}, nil)
	require.Error(t, err)

	_, err = s.Schedule(JobConfig{Expression: "not cron"}, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestScheduleRunsJob(t *testing.T) {
	s := NewScheduler(WithParser(SecondsParser))
	var count atomic.Int32

	handle, err := s.Schedule(JobConfig{Name: "tick", Expression: "* * * * * *"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return count.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return handle.Runs() >= 1 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, handle.Err())
}

func TestScheduleReportsFailures(t *testing.T) {
	failures := make(chan error, 4)
	s := NewScheduler(WithErrorHandler(func(err error) { failures <- err }))

	handle, err := s.Schedule(JobConfig{Expression: "@every 1s"}, func(context.Context) error {
		return errors.New("refresh failed")
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case err := <-failures:
		assert.EqualError(t, err, "refresh failed")
	case <-time.After(3 * time.Second):
		t.Fatal("expected failure to be reported")
	}
	require.Eventually(t, func() bool { return handle.Status() == StatusFailed }, time.Second, 10*time.Millisecond)
}

func TestCancelAndStop(t *testing.T) {
	s := NewScheduler()
	handle, err := s.Schedule(JobConfig{Expression: "@every 1h"}, func(context.Context) error { return nil })
	require.NoError(t, err)

	handle.Cancel()
	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("expected done channel to close")
	}
	assert.Equal(t, StatusCanceled, handle.Status())

	other, err := s.Schedule(JobConfig{Expression: "@every 1h"}, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StatusStopped, other.Status())
}
