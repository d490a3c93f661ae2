//go:build !linux

package internal

import (
	"time"
)

var _ ITimer = &Timer{}

type Timer struct {
	poller *Poller

	armed   bool
	oneshot bool
	gen     uint64
	stop    chan struct{}
	cb      func(uint64)
}

func NewTimer(poller *Poller) (*Timer, error) {
	return &Timer{poller: poller}, nil
}

func (t *Timer) Set(delay, period time.Duration, cb func(uint64)) error {
	if err := t.Unset(); err != nil {
		return err
	}

	if delay < 0 {
		delay = 0
	}
	if period < 0 {
		period = 0
	}

	t.gen++
	t.armed = true
	t.oneshot = period == 0
	t.cb = cb
	t.stop = make(chan struct{})
	t.poller.registered.Add(1)

	gen, stop := t.gen, t.stop
	fire := func() {
		t.poller.expire(func() { t.onExpire(gen) })
	}

	go func() {
		after := time.NewTimer(delay)
		defer after.Stop()

		select {
		case <-stop:
			return
		case <-after.C:
			fire()
		}

		if period == 0 {
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fire()
			}
		}
	}()

	return nil
}

func (t *Timer) onExpire(gen uint64) {
	// Stale expiration of a previous arming.
	if !t.armed || gen != t.gen {
		return
	}

	if t.oneshot {
		t.armed = false
		t.poller.registered.Add(-1)
	}

	t.cb(1)
}

func (t *Timer) Unset() error {
	if !t.armed {
		return nil
	}

	t.armed = false
	t.gen++
	close(t.stop)
	t.poller.registered.Add(-1)
	return nil
}

func (t *Timer) Armed() bool {
	return t.armed
}

func (t *Timer) Close() error {
	return t.Unset()
}
