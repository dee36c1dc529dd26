package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/pipeline"
)

type countingSweeper struct {
	calls atomic.Int32
	limit atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(_ context.Context, limit int) (pipeline.SweepReport, error) {
	s.calls.Add(1)
	s.limit.Store(int32(limit))
	return pipeline.SweepReport{Processed: 1}, s.err
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["sweep"])
	assert.True(t, names["retry"])

	sweep, _, err := root.Find([]string{"sweep"})
	require.NoError(t, err)
	assert.NotNil(t, sweep.Flags().Lookup("schedule"))
	assert.Equal(t, "20", sweep.Flags().Lookup("limit").DefValue)
}

func TestRunSweepReportsErrors(t *testing.T) {
	s := &countingSweeper{err: errors.New("db gone")}
	_, err := runSweep(context.Background(), s, zerolog.Nop(), 7)
	require.Error(t, err)
	assert.EqualValues(t, 7, s.limit.Load())
}

func TestScheduleSweepsRepeatsUntilCancelled(t *testing.T) {
	s := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scheduleSweeps(ctx, s, zerolog.Nop(), sweepOptions{limit: 5, schedule: "@every 1s"})
	}()

	require.Eventually(t, func() bool { return s.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.EqualValues(t, 5, s.limit.Load())
}

func TestScheduleSweepsRejectsBadSchedule(t *testing.T) {
	err := scheduleSweeps(context.Background(), &countingSweeper{}, zerolog.Nop(), sweepOptions{schedule: "every tuesday"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}
