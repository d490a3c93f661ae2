package alan

import (
	"math"
	"runtime"
	"syscall"
	"time"

	"github.com/talostrading/alan/alanerrors"
	"github.com/talostrading/alan/internal"
)

// IO is a single-threaded event loop. Handlers and timer callbacks run on the
// goroutine which calls one of the Run or Poll methods.
type IO struct {
	poller *internal.Poller

	// pendingTimers keeps scheduled timers reachable while they are armed, in
	// case their owner drops them.
	pendingTimers map[*Timer]struct{}
}

func NewIO() (*IO, error) {
	poller, err := internal.NewPoller()
	if err != nil {
		return nil, err
	}

	return &IO{
		poller:        poller,
		pendingTimers: make(map[*Timer]struct{}),
	}, nil
}

func MustIO() *IO {
	ioc, err := NewIO()
	if err != nil {
		panic(err)
	}
	return ioc
}

// Run runs the event processing loop until an error occurs or the loop is
// closed.
func (ioc *IO) Run() error {
	for {
		if err := ioc.RunOne(); err != nil && err != alanerrors.ErrTimeout {
			return err
		}
	}
}

// RunPending runs the event processing loop until there are no more pending
// operations: no scheduled timers, posted handlers or holds.
func (ioc *IO) RunPending() error {
	for ioc.Pending() > 0 {
		if err := ioc.RunOne(); err != nil && err != alanerrors.ErrTimeout {
			return err
		}
	}
	return nil
}

// RunOne blocks until at least one event is ready and dispatches the ready
// events.
func (ioc *IO) RunOne() error {
	return ioc.poll(-1)
}

// RunOneFor is like RunOne but waits at most timeout, rounded up to the next
// millisecond. It returns alanerrors.ErrTimeout if nothing happened.
func (ioc *IO) RunOneFor(timeout time.Duration) error {
	return ioc.poll(pollTimeout(timeout))
}

func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// Poll dispatches every ready event without blocking.
func (ioc *IO) Poll() error {
	for {
		if err := ioc.PollOne(); err != nil {
			if err == alanerrors.ErrTimeout {
				return nil
			}
			return err
		}
	}
}

// PollOne dispatches the events which are ready. It returns
// alanerrors.ErrTimeout immediately if there are none.
func (ioc *IO) PollOne() error {
	return ioc.poll(0)
}

func (ioc *IO) poll(timeoutMs int) error {
	if _, err := ioc.poller.Poll(timeoutMs); err != nil {
		if err == syscall.EINTR {
			if timeoutMs >= 0 {
				return alanerrors.ErrTimeout
			}

			runtime.Gosched()
			return nil
		}
		return err
	}
	return nil
}

// Post schedules the handler to run on the event loop goroutine. It is safe
// for concurrent use.
func (ioc *IO) Post(handler func()) error {
	return ioc.poller.Post(handler)
}

// Posted returns the number of posted handlers which did not run yet.
func (ioc *IO) Posted() int {
	return ioc.poller.Posted()
}

// Pending returns the number of operations which keep RunPending going.
func (ioc *IO) Pending() int64 {
	return ioc.poller.Pending()
}

// Hold keeps RunPending going until release is called. release is safe to call
// from any goroutine, more than once.
func (ioc *IO) Hold() (release func()) {
	return ioc.poller.Hold()
}

func (ioc *IO) Closed() bool {
	return ioc.poller.Closed()
}

// Close closes the event loop. A second call returns io.EOF.
func (ioc *IO) Close() error {
	return ioc.poller.Close()
}
