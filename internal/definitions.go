package internal

import (
	"sync"
	"sync/atomic"
	"time"
)

// ITimer is a platform timer whose expirations are dispatched by a Poller.
type ITimer interface {
	// Set arms the timer to expire after delay and then every period. A zero
	// period arms a one-shot timer. Any previous arming is discarded.
	Set(delay, period time.Duration, cb func(expirations uint64)) error

	// Unset disarms the timer. Expirations which were not yet dispatched are
	// dropped.
	Unset() error

	// Armed returns true if the timer is registered with its Poller.
	Armed() bool

	Close() error
}

// handlerQueue holds the handlers posted to a Poller from any goroutine.
// Handlers are run outside the lock so they can post more handlers.
type handlerQueue struct {
	lck      sync.Mutex
	handlers []func()
	spare    []func()

	posted atomic.Int64
}

func (q *handlerQueue) push(handler func()) {
	q.lck.Lock()
	q.handlers = append(q.handlers, handler)
	q.posted.Add(1)
	q.lck.Unlock()
}

func (q *handlerQueue) empty() bool {
	return q.posted.Load() == 0
}

// run executes everything posted so far. Only the polling goroutine calls it.
func (q *handlerQueue) run() (n int) {
	q.lck.Lock()
	handlers := q.handlers
	q.handlers = q.spare[:0]
	q.lck.Unlock()

	for i, handler := range handlers {
		q.posted.Add(-1)
		handlers[i] = nil
		handler()
		n++
	}

	q.spare = handlers[:0]
	return n
}

// holds counts the outstanding Hold calls of a Poller.
type holds struct {
	n atomic.Int64
}

func (h *holds) acquire(wake func()) (release func()) {
	h.n.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.n.Add(-1)
			wake()
		})
	}
}
