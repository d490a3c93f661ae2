package alan

import (
	"io"
	"log"
	"os"
)

type options struct {
	output       io.Writer
	logger       *log.Logger
	workers      int
	keepAlive    bool
	panicHandler func(TimerID, any)
}

func defaultOptions() options {
	return options{
		output:  os.Stdout,
		workers: 4,
	}
}

type Option func(o *options)

// WithOutput sets where the Console writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogger sets the diagnostics logger. Defaults to NewLogger().
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWorkers sets the size of the pool running Spawn'ed work.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithKeepAlive makes Run wait for more work when nothing is pending, until
// Stop is called or its context is done.
func WithKeepAlive() Option {
	return func(o *options) {
		o.keepAlive = true
	}
}

// WithPanicHandler is called, on the loop goroutine, after a timer callback
// panicked and the panic was logged.
func WithPanicHandler(fn func(TimerID, any)) Option {
	return func(o *options) {
		o.panicHandler = fn
	}
}
