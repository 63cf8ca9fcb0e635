package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.Add(context.Background(), "every tuesday-ish", func(context.Context) {})
	assert.Error(t, err)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var started, active, overlapped atomic.Int32
	release := make(chan struct{})

	require.NoError(t, s.Add(context.Background(), "@every 1s", func(context.Context) {
		if active.Add(1) > 1 {
			overlapped.Add(1)
		}
		started.Add(1)
		<-release
		active.Add(-1)
	}))

	s.Start()
	assert.Eventually(t, func() bool { return started.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	// let further ticks fire while the first run is still blocked
	time.Sleep(2200 * time.Millisecond)
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), started.Load())
	assert.Zero(t, overlapped.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Add(context.Background(), "@every 1h", func(context.Context) { runs.Add(1) }))
	s.Start()
	defer s.Stop()

	s.RunNow()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_StopWaitsForRunNow(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var started, finished atomic.Bool
	require.NoError(t, s.Add(context.Background(), "@every 1h", func(context.Context) {
		started.Store(true)
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
	}))
	s.Start()

	s.RunNow()
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.True(t, finished.Load(), "Stop returned while the start-up run was still going")
}
