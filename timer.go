package alan

import (
	"io"
	"time"

	"github.com/talostrading/alan/alanerrors"
	"github.com/talostrading/alan/internal"
)

type timerState uint8

const (
	stateReady timerState = iota
	stateScheduled
	stateClosed
)

func (s timerState) String() string {
	switch s {
	case stateReady:
		return "state_ready"
	case stateScheduled:
		return "state_scheduled"
	case stateClosed:
		return "state_closed"
	default:
		return "unknown"
	}
}

// Timer runs a callback on its IO once or repeatedly.
//
// A one-shot timer is ready again by the time its callback runs, so the
// callback may reschedule it. A repeating timer stays scheduled until it is
// cancelled or closed.
type Timer struct {
	ioc *IO
	it  *internal.Timer

	state     timerState
	repeating bool
	fired     uint64
	cb        func()
}

func NewTimer(ioc *IO) (*Timer, error) {
	it, err := internal.NewTimer(ioc.poller)
	if err != nil {
		return nil, err
	}

	return &Timer{
		ioc:   ioc,
		it:    it,
		state: stateReady,
	}, nil
}

// ScheduleOnce calls cb once after dur. A non-positive dur fires on the next
// poll.
func (t *Timer) ScheduleOnce(dur time.Duration, cb func()) error {
	return t.schedule(dur, 0, cb)
}

// ScheduleRepeating calls cb every dur until the timer is cancelled. If the
// loop falls behind, missed expirations are coalesced into one call.
func (t *Timer) ScheduleRepeating(dur time.Duration, cb func()) error {
	if dur <= 0 {
		dur = time.Millisecond
	}
	return t.schedule(dur, dur, cb)
}

func (t *Timer) schedule(delay, period time.Duration, cb func()) error {
	if t.state == stateClosed {
		return alanerrors.ErrCancelled
	}

	if delay < 0 {
		delay = 0
	}

	if err := t.it.Set(delay, period, t.onFire); err != nil {
		return err
	}

	t.cb = cb
	t.repeating = period > 0
	t.state = stateScheduled
	t.ioc.pendingTimers[t] = struct{}{}

	return nil
}

func (t *Timer) onFire(expirations uint64) {
	t.fired += expirations

	if !t.repeating {
		t.state = stateReady
		delete(t.ioc.pendingTimers, t)
	}

	t.cb()
}

// Scheduled returns true if the timer is armed.
func (t *Timer) Scheduled() bool {
	return t.state == stateScheduled
}

// Fired returns the number of expirations delivered since the timer was
// created.
func (t *Timer) Fired() uint64 {
	return t.fired
}

// Cancel disarms a scheduled timer. The timer can be scheduled again.
func (t *Timer) Cancel() error {
	if t.state != stateScheduled {
		return nil
	}

	err := t.it.Unset()
	t.state = stateReady
	delete(t.ioc.pendingTimers, t)
	return err
}

// Close cancels the timer and releases its resources. Scheduling a closed
// timer returns alanerrors.ErrCancelled.
func (t *Timer) Close() error {
	if t.state == stateClosed {
		return io.EOF
	}

	t.state = stateClosed
	delete(t.ioc.pendingTimers, t)
	return t.it.Close()
}
