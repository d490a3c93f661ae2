//go:build linux

package internal

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestEventFdCoalesces(t *testing.T) {
	e, err := NewEventFd()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for i := 0; i < 3; i++ {
		if err := e.Signal(); err != nil {
			t.Fatal(err)
		}
	}

	if n := e.Drain(); n != 3 {
		t.Fatalf("expected 3 signals, got %d", n)
	}
	if n := e.Drain(); n != 0 {
		t.Fatalf("expected drained eventfd, got %d", n)
	}
}

func BenchmarkEpollWait(b *testing.B) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		b.Fatal(err)
	}
	defer unix.Close(fd)

	events := make([]unix.EpollEvent, 128)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := unix.EpollWait(fd, events, 0); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
}
