package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmfresh-backend/pkg/logging"
)

type countingRefresher struct {
	calls       atomic.Int64
	forced      atomic.Bool
	hasDeadline atomic.Bool
}

func (r *countingRefresher) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	_, ok := ctx.Deadline()
	r.hasDeadline.Store(ok)
	r.forced.Store(force)
	r.calls.Add(1)
	return true, nil
}

func quietLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("scheduler-test", "test", logging.InfoLevel)
	l.SetOutput(io.Discard)
	return l
}

func TestScheduler_RunsForcedRefresh(t *testing.T) {
	target := &countingRefresher{}
	s := New(target, time.Second, quietLogger())

	require.NoError(t, s.Start("* * * * * *"))
	defer s.Stop()

	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, target.forced.Load())
	assert.True(t, target.hasDeadline.Load())
}

func TestScheduler_MidnightNextRun(t *testing.T) {
	s := New(&countingRefresher{}, 0, quietLogger())
	assert.True(t, s.Next().IsZero())

	require.NoError(t, s.Start(""))
	defer s.Stop()

	next := s.Next()
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, 0, next.Second())
	assert.True(t, next.After(time.Now()))
	assert.LessOrEqual(t, time.Until(next), 24*time.Hour)

	assert.Error(t, s.Start(""), "second start rejected")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(&countingRefresher{}, time.Second, quietLogger())
	assert.Error(t, s.Start("not a cron spec"))
	s.Stop()
}
