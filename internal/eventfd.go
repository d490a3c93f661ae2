//go:build linux

package internal

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// EventFd wakes up a Poller blocked in epoll_wait.
type EventFd struct {
	fd  int
	buf [8]byte
}

func NewEventFd() (*EventFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &EventFd{fd: fd}, nil
}

// Signal makes the eventfd readable. It is safe for concurrent use.
func (e *EventFd) Signal() error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)

	_, err := unix.Write(e.fd, b[:])
	if err == unix.EAGAIN {
		// The counter is saturated, so the eventfd is readable already.
		return nil
	}
	if err != nil {
		return os.NewSyscallError("eventfd_write", err)
	}
	return nil
}

// Drain resets the counter and returns the number of signals since the last
// Drain.
func (e *EventFd) Drain() uint64 {
	n, err := unix.Read(e.fd, e.buf[:])
	if err != nil || n != len(e.buf) {
		return 0
	}
	return binary.NativeEndian.Uint64(e.buf[:])
}

func (e *EventFd) Fd() int {
	return e.fd
}

func (e *EventFd) Close() error {
	return unix.Close(e.fd)
}
