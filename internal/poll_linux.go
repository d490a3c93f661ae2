//go:build linux

package internal

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/talostrading/alan/alanerrors"
	"golang.org/x/sys/unix"
)

type PollFlags uint32

const ReadFlags = PollFlags(unix.EPOLLIN)

// PollData is the registration of a file descriptor with the Poller.
type PollData struct {
	Fd    int
	Flags PollFlags

	// Cb is called on the polling goroutine each time Fd is readable, until
	// interest is removed with DelRead.
	Cb func()
}

type Poller struct {
	// fd is the file descriptor returned by epoll_create1.
	fd int

	// events is filled by epoll_wait.
	events []unix.EpollEvent

	// slots maps a registered file descriptor to its PollData. Only the
	// polling goroutine touches it.
	slots map[int]*PollData

	// waker is signalled by Post and by released holds.
	waker *EventFd

	queue handlerQueue
	holds holds

	// registered is the number of file descriptors with read interest.
	registered atomic.Int64

	closed atomic.Bool
}

func NewPoller() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	waker, err := NewEventFd()
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	p := &Poller{
		fd:     fd,
		events: make([]unix.EpollEvent, 128),
		slots:  make(map[int]*PollData),
		waker:  waker,
	}

	if err := p.ctl(unix.EPOLL_CTL_ADD, waker.Fd(), ReadFlags); err != nil {
		_ = waker.Close()
		_ = unix.Close(fd)
		return nil, err
	}

	return p, nil
}

// Poll waits at most timeoutMs milliseconds for events and dispatches them on
// the calling goroutine. A negative timeout blocks until an event occurs.
func (p *Poller) Poll(timeoutMs int) (n int, err error) {
	if p.closed.Load() {
		return 0, alanerrors.ErrClosed
	}

	nev, err := unix.EpollWait(p.fd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, err
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}

	if nev == 0 && timeoutMs >= 0 {
		return 0, alanerrors.ErrTimeout
	}

	for i := 0; i < nev; i++ {
		fd := int(p.events[i].Fd)

		if fd == p.waker.Fd() {
			p.waker.Drain()
			n += p.queue.run()
			continue
		}

		// A handler dispatched earlier in this batch might have removed the
		// interest on fd.
		pd, ok := p.slots[fd]
		if !ok || pd.Flags&ReadFlags != ReadFlags {
			continue
		}

		pd.Cb()
		n++
	}

	return n, nil
}

// Pending returns the number of registered file descriptors, posted handlers
// and outstanding holds.
func (p *Poller) Pending() int64 {
	return p.registered.Load() + p.queue.posted.Load() + p.holds.n.Load()
}

// Post schedules the handler to run on the polling goroutine. It is safe for
// concurrent use.
func (p *Poller) Post(handler func()) error {
	if p.closed.Load() {
		return alanerrors.ErrClosed
	}

	p.queue.push(handler)
	return p.waker.Signal()
}

// Posted returns the number of handlers which have been posted but not yet
// dispatched.
func (p *Poller) Posted() int {
	return int(p.queue.posted.Load())
}

// Hold counts as one pending operation until the returned func is called.
func (p *Poller) Hold() (release func()) {
	return p.holds.acquire(func() {
		if !p.closed.Load() {
			_ = p.waker.Signal()
		}
	})
}

func (p *Poller) SetRead(pd *PollData) error {
	if pd.Flags&ReadFlags == ReadFlags {
		return nil
	}

	if err := p.ctl(unix.EPOLL_CTL_ADD, pd.Fd, ReadFlags); err != nil {
		return err
	}

	pd.Flags |= ReadFlags
	p.slots[pd.Fd] = pd
	p.registered.Add(1)

	return nil
}

func (p *Poller) DelRead(pd *PollData) error {
	if pd.Flags&ReadFlags != ReadFlags {
		return nil
	}

	pd.Flags &^= ReadFlags
	delete(p.slots, pd.Fd)
	p.registered.Add(-1)

	return p.ctl(unix.EPOLL_CTL_DEL, pd.Fd, 0)
}

func (p *Poller) ctl(op, fd int, flags PollFlags) error {
	ev := unix.EpollEvent{
		Events: uint32(flags),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.fd, op, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return io.EOF
	}

	_ = p.waker.Close()
	return unix.Close(p.fd)
}

func (p *Poller) Closed() bool {
	return p.closed.Load()
}
