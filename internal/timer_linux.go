//go:build linux

package internal

import (
	"encoding/binary"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

var _ ITimer = &Timer{}

// Timer is backed by a non-blocking CLOCK_MONOTONIC timerfd.
type Timer struct {
	poller *Poller
	pd     PollData
	buf    [8]byte

	oneshot bool
	cb      func(uint64)
}

func NewTimer(poller *Poller) (*Timer, error) {
	fd, err := unix.TimerfdCreate(
		unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("timerfd_create", err)
	}

	t := &Timer{
		poller: poller,
	}
	t.pd.Fd = fd
	t.pd.Cb = t.onReadable
	return t, nil
}

func (t *Timer) Set(delay, period time.Duration, cb func(uint64)) error {
	if err := t.Unset(); err != nil {
		return err
	}

	// A zero it_value disarms a timerfd.
	if delay <= 0 {
		delay = time.Nanosecond
	}
	if period < 0 {
		period = 0
	}

	err := unix.TimerfdSettime(t.pd.Fd, 0, &unix.ItimerSpec{
		Value:    unix.NsecToTimespec(delay.Nanoseconds()),
		Interval: unix.NsecToTimespec(period.Nanoseconds()),
	}, nil)
	if err != nil {
		return os.NewSyscallError("timerfd_settime", err)
	}

	t.oneshot = period == 0
	t.cb = cb

	return t.poller.SetRead(&t.pd)
}

func (t *Timer) onReadable() {
	n, err := unix.Read(t.pd.Fd, t.buf[:])
	if err != nil || n != len(t.buf) {
		// EAGAIN: the timer was re-armed after its readiness was reported.
		return
	}
	expirations := binary.NativeEndian.Uint64(t.buf[:])

	if t.oneshot {
		_ = t.poller.DelRead(&t.pd)
	}

	t.cb(expirations)
}

func (t *Timer) Unset() error {
	if !t.Armed() {
		return nil
	}

	// Re-arming or disarming a timerfd resets its expiration count.
	err := unix.TimerfdSettime(t.pd.Fd, 0, &unix.ItimerSpec{}, nil)
	if err != nil {
		return os.NewSyscallError("timerfd_settime", err)
	}
	return t.poller.DelRead(&t.pd)
}

func (t *Timer) Armed() bool {
	return t.pd.Flags&ReadFlags == ReadFlags
}

func (t *Timer) Close() error {
	err := t.Unset()
	if cerr := unix.Close(t.pd.Fd); err == nil && cerr != nil {
		err = os.NewSyscallError("close", cerr)
	}
	return err
}
