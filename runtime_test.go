package alan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *bytes.Buffer) {
	var out bytes.Buffer
	opts = append([]Option{
		WithOutput(&out),
		WithLogger(log.New(io.Discard, "", 0)),
	}, opts...)

	rt, err := NewRuntime(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	return rt, &out
}

func TestRuntimeRunReturnsWhenIdle(t *testing.T) {
	rt, _ := newTestRuntime(t)

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return with nothing pending")
	}
}

func TestRuntimeEvalAndRun(t *testing.T) {
	rt, out := newTestRuntime(t)

	err := rt.Eval(func(rt *Runtime) error {
		_, err := rt.SetTimeout(time.Millisecond, func() { rt.Log("later") })
		rt.Log("now")
		return err
	})
	require.NoError(t, err)

	require.NoError(t, rt.Run(context.Background()))
	assert.Equal(t, "now\nlater\n", out.String())
}

func TestRuntimeEvalError(t *testing.T) {
	rt, _ := newTestRuntime(t)

	boom := errors.New("boom")
	err := rt.Eval(func(*Runtime) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type stopTask struct{ ran bool }

func (s *stopTask) Execute(rt *Runtime) error {
	s.ran = true
	return nil
}

func (s *stopTask) Stop() bool { return true }

func TestRuntimeStopTask(t *testing.T) {
	rt, _ := newTestRuntime(t, WithKeepAlive())

	task := &stopTask{}
	require.NoError(t, rt.Queue(task))

	after := false
	require.NoError(t, rt.Queue(TaskFunc(func(*Runtime) error {
		after = true
		return nil
	})))

	require.NoError(t, rt.Run(context.Background()))
	assert.True(t, task.ran)
	assert.False(t, after, "tasks after a stop must not run")
	assert.True(t, rt.Stopped())
}

func TestRuntimeTaskError(t *testing.T) {
	rt, _ := newTestRuntime(t)

	boom := errors.New("boom")
	_, err := rt.SetInterval(time.Millisecond, func() {})
	require.NoError(t, err)
	require.NoError(t, rt.Queue(TaskFunc(func(*Runtime) error { return boom })))

	assert.ErrorIs(t, rt.Run(context.Background()), boom)
}

func TestRuntimeContextCancel(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := rt.SetInterval(time.Millisecond, func() {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, rt.Run(ctx), context.DeadlineExceeded)
}

func TestRuntimeStopFromOtherGoroutine(t *testing.T) {
	rt, _ := newTestRuntime(t, WithKeepAlive())

	go func() {
		time.Sleep(5 * time.Millisecond)
		rt.Stop()
	}()

	assert.NoError(t, rt.Run(context.Background()))
}

func TestRuntimeSpawn(t *testing.T) {
	rt, out := newTestRuntime(t)

	var got error
	boom := errors.New("boom")
	require.NoError(t, rt.Spawn(func() error {
		time.Sleep(5 * time.Millisecond)
		return boom
	}, func(err error) {
		got = err
		rt.Log("done")
	}))

	require.NoError(t, rt.Run(context.Background()))
	assert.ErrorIs(t, got, boom)
	assert.Equal(t, "done\n", out.String())
}

func TestRuntimeSpawnPanic(t *testing.T) {
	var logs bytes.Buffer
	rt, _ := newTestRuntime(t, WithLogger(log.New(&logs, "", 0)))

	var got error
	called := false
	require.NoError(t, rt.Spawn(func() error {
		panic("boom")
	}, func(err error) {
		called = true
		got = err
	}))

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the spawned work panicked")
	}

	assert.True(t, called)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "boom")
	assert.Contains(t, logs.String(), "panic in spawned work: boom")
	assert.Equal(t, int64(0), rt.IO().Pending())
}

func TestRuntimeRunAgainAfterStop(t *testing.T) {
	rt, out := newTestRuntime(t)

	boom := errors.New("boom")
	require.NoError(t, rt.Queue(TaskFunc(func(*Runtime) error { return boom })))
	assert.ErrorIs(t, rt.Run(context.Background()), boom)
	assert.True(t, rt.Stopped())

	_, err := rt.SetTimeout(time.Millisecond, func() { rt.Log("second run") })
	require.NoError(t, err)

	require.NoError(t, rt.Run(context.Background()))
	assert.False(t, rt.Stopped())
	assert.Equal(t, "second run\n", out.String())
}

func TestRuntimePanicHandler(t *testing.T) {
	var ids []TimerID
	rt, _ := newTestRuntime(t, WithPanicHandler(func(id TimerID, _ any) {
		ids = append(ids, id)
	}))

	id, err := rt.SetTimeout(0, func() { panic("boom") })
	require.NoError(t, err)

	require.NoError(t, rt.Run(context.Background()))
	assert.Equal(t, []TimerID{id}, ids)
}

func TestRuntimeLogFailure(t *testing.T) {
	var logs bytes.Buffer
	rt, err := NewRuntime(
		WithOutput(&countingWriter{err: errors.New("closed")}),
		WithLogger(log.New(&logs, "", 0)),
	)
	require.NoError(t, err)
	defer rt.Close()

	rt.Log("lost")
	assert.True(t, strings.Contains(logs.String(), "console write failed: closed"))
}
