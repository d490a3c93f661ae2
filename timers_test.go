package alan

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talostrading/alan/alanerrors"
)

func newTestTimers(t *testing.T) (*IO, *Timers, *bytes.Buffer) {
	ioc := MustIO()
	t.Cleanup(func() { ioc.Close() })

	var logs bytes.Buffer
	timers := NewTimers(ioc, log.New(&logs, "", 0))
	t.Cleanup(timers.Close)

	return ioc, timers, &logs
}

func TestTimersIDsIncrease(t *testing.T) {
	_, timers, _ := newTestTimers(t)

	a, err := timers.SetTimeout(time.Hour, func() {})
	require.NoError(t, err)
	b, err := timers.SetInterval(time.Hour, func() {})
	require.NoError(t, err)

	assert.Equal(t, TimerID(1), a)
	assert.Equal(t, TimerID(2), b)

	assert.True(t, timers.Clear(a))

	c, err := timers.SetTimeout(time.Hour, func() {})
	require.NoError(t, err)
	assert.Equal(t, TimerID(3), c, "ids must not be reused")

	assert.Equal(t, []TimerID{2, 3}, timers.Active())

	kind, ok := timers.Kind(b)
	assert.True(t, ok)
	assert.Equal(t, KindInterval, kind)
}

func TestTimersTimeoutFiresOnceAndIsRemoved(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	fired := 0
	id, err := timers.SetTimeout(2*time.Millisecond, func() { fired++ })
	require.NoError(t, err)
	assert.Equal(t, 1, timers.Len())

	require.NoError(t, ioc.RunPending())

	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, timers.Len())
	assert.False(t, timers.ClearTimeout(id), "a fired timeout is gone")
	assert.Equal(t, int64(1), timers.Drift().Count())
}

func TestTimersClearUnknown(t *testing.T) {
	_, timers, _ := newTestTimers(t)

	assert.False(t, timers.ClearTimeout(42))
	assert.False(t, timers.ClearInterval(0))

	id, err := timers.SetInterval(time.Hour, func() {})
	require.NoError(t, err)

	assert.True(t, timers.ClearInterval(id))
	assert.False(t, timers.ClearInterval(id), "clearing twice is a no-op")
}

func TestTimersClearTimeoutBeforeFiring(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	fired := false
	id, err := timers.SetTimeout(time.Millisecond, func() { fired = true })
	require.NoError(t, err)

	assert.True(t, timers.ClearTimeout(id))
	require.NoError(t, ioc.RunPending())

	pollFor(ioc, 5*time.Millisecond)
	assert.False(t, fired)
}

func TestTimersIntervalUntilCleared(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	var (
		interval TimerID
		fired    int
		after    int
	)

	interval, err := timers.SetInterval(2*time.Millisecond, func() { fired++ })
	require.NoError(t, err)

	_, err = timers.SetTimeout(11*time.Millisecond, func() {
		assert.True(t, timers.ClearInterval(interval))
		after = fired
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, ioc.RunPending())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, fired, 3)
	assert.LessOrEqual(t, fired, 6)
	assert.Equal(t, after, fired, "interval fired after it was cleared")
	assert.GreaterOrEqual(t, elapsed, 11*time.Millisecond)
	assert.Equal(t, 0, timers.Len())
}

func TestTimersIntervalClearsItself(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	var id TimerID
	fired := 0
	id, err := timers.SetInterval(time.Millisecond, func() {
		fired++
		if fired == 3 {
			timers.ClearInterval(id)
		}
	})
	require.NoError(t, err)

	require.NoError(t, ioc.RunPending())
	pollFor(ioc, 5*time.Millisecond)

	assert.Equal(t, 3, fired)
}

func TestTimersTimeoutClearingItselfIsNoop(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	var id TimerID
	cleared := true
	id, err := timers.SetTimeout(time.Millisecond, func() {
		cleared = timers.ClearTimeout(id)
	})
	require.NoError(t, err)

	require.NoError(t, ioc.RunPending())
	assert.False(t, cleared)
}

func TestTimersPanicIsRecovered(t *testing.T) {
	ioc, timers, logs := newTestTimers(t)

	var (
		panicked TimerID
		value    any
	)
	timers.OnPanic(func(id TimerID, r any) {
		panicked, value = id, r
	})

	fired := 0
	id, err := timers.SetInterval(time.Millisecond, func() {
		fired++
		if fired == 1 {
			panic("boom")
		}
		if fired == 3 {
			timers.Clear(1)
		}
	})
	require.NoError(t, err)

	require.NoError(t, ioc.RunPending())

	assert.Equal(t, 3, fired, "interval keeps firing after a panic")
	assert.Equal(t, 1, timers.Panics())
	assert.Equal(t, id, panicked)
	assert.Equal(t, "boom", value)
	assert.True(t, strings.Contains(logs.String(), "panic in interval id=1: boom"))
}

func TestTimersNegativeDelay(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	fired := false
	_, err := timers.SetTimeout(-time.Second, func() { fired = true })
	require.NoError(t, err)

	require.NoError(t, ioc.RunPending())
	assert.True(t, fired)
}

func TestTimersSchedule(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	var id TimerID
	fired := 0
	// every second
	id, err := timers.SetSchedule("* * * * * * *", func() {
		fired++
		if fired == 2 {
			timers.Clear(id)
		}
	})
	require.NoError(t, err)

	kind, ok := timers.Kind(id)
	require.True(t, ok)
	assert.Equal(t, KindSchedule, kind)

	require.NoError(t, ioc.RunPending())
	assert.Equal(t, 2, fired)
}

func TestTimersScheduleErrors(t *testing.T) {
	_, timers, _ := newTestTimers(t)

	_, err := timers.SetSchedule("not a cron line", func() {})
	assert.Error(t, err)

	_, err = timers.SetSchedule("0 0 0 1 1 * 1999", func() {})
	assert.True(t, errors.Is(err, alanerrors.ErrNoActivation), "got %v", err)

	assert.Equal(t, 0, timers.Len())
}

func TestTimersCloseClearsEverything(t *testing.T) {
	ioc, timers, _ := newTestTimers(t)

	for i := 0; i < 3; i++ {
		_, err := timers.SetInterval(time.Millisecond, func() {})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), ioc.Pending())

	timers.Close()

	assert.Equal(t, 0, timers.Len())
	assert.Equal(t, int64(0), ioc.Pending())
}

func TestTimerKindString(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "interval", KindInterval.String())
	assert.Equal(t, "schedule", KindSchedule.String())
	assert.Equal(t, "unknown", TimerKind(42).String())
}
