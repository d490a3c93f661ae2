//go:build !linux

package internal

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/talostrading/alan/alanerrors"
)

// Poller is the portable event queue used where epoll is not available.
// Timer expirations are delivered by Go timers through an internal queue.
type Poller struct {
	queue handlerQueue
	holds holds

	// fired holds timer expirations. They are not counted as posted since the
	// armed timer itself is.
	fired handlerQueue

	wake chan struct{}
	done chan struct{}

	registered atomic.Int64

	closed atomic.Bool
}

func NewPoller() (*Poller, error) {
	return &Poller{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}, nil
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) Poll(timeoutMs int) (n int, err error) {
	if p.closed.Load() {
		return 0, alanerrors.ErrClosed
	}

	if p.queue.empty() && p.fired.empty() {
		switch {
		case timeoutMs < 0:
			select {
			case <-p.wake:
			case <-p.done:
				return 0, alanerrors.ErrClosed
			}
		case timeoutMs == 0:
			select {
			case <-p.wake:
			default:
				return 0, alanerrors.ErrTimeout
			}
		default:
			t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
			select {
			case <-p.wake:
				t.Stop()
			case <-p.done:
				t.Stop()
				return 0, alanerrors.ErrClosed
			case <-t.C:
				return 0, alanerrors.ErrTimeout
			}
		}
	} else {
		select {
		case <-p.wake:
		default:
		}
	}

	n += p.fired.run()
	n += p.queue.run()
	return n, nil
}

func (p *Poller) Pending() int64 {
	return p.registered.Load() + p.queue.posted.Load() + p.holds.n.Load()
}

func (p *Poller) Post(handler func()) error {
	if p.closed.Load() {
		return alanerrors.ErrClosed
	}

	p.queue.push(handler)
	p.signal()
	return nil
}

func (p *Poller) Posted() int {
	return int(p.queue.posted.Load())
}

func (p *Poller) Hold() (release func()) {
	return p.holds.acquire(p.signal)
}

func (p *Poller) expire(handler func()) {
	if p.closed.Load() {
		return
	}

	p.fired.push(handler)
	p.signal()
}

func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return io.EOF
	}

	close(p.done)
	return nil
}

func (p *Poller) Closed() bool {
	return p.closed.Load()
}
