package alan

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/talostrading/alan/alanerrors"
)

// Runtime hosts a script: an event loop, a timer registry, a console, a task
// queue and a worker pool for blocking work. Everything except Queue, Spawn
// and Stop must be called from the loop goroutine or before Run.
type Runtime struct {
	ioc     *IO
	timers  *Timers
	console *Console
	pool    *ants.Pool
	log     *log.Logger
	opts    options

	stopped bool
	err     error
}

func NewRuntime(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger()
	}
	if o.workers <= 0 {
		o.workers = 1
	}

	ioc, err := NewIO()
	if err != nil {
		return nil, fmt.Errorf("create event loop: %w", err)
	}

	pool, err := ants.NewPool(o.workers, ants.WithPanicHandler(func(r any) {
		o.logger.Printf("panic in spawned work: %v", r)
	}))
	if err != nil {
		_ = ioc.Close()
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	rt := &Runtime{
		ioc:     ioc,
		console: NewConsole(o.output),
		pool:    pool,
		log:     o.logger,
		opts:    o,
	}
	rt.timers = NewTimers(ioc, o.logger)
	rt.timers.OnPanic(o.panicHandler)

	return rt, nil
}

func MustRuntime(opts ...Option) *Runtime {
	rt, err := NewRuntime(opts...)
	if err != nil {
		panic(err)
	}
	return rt
}

func (rt *Runtime) IO() *IO {
	return rt.ioc
}

func (rt *Runtime) Timers() *Timers {
	return rt.timers
}

func (rt *Runtime) Console() *Console {
	return rt.console
}

func (rt *Runtime) Logger() *log.Logger {
	return rt.log
}

func (rt *Runtime) SetTimeout(delay time.Duration, cb func()) (TimerID, error) {
	return rt.timers.SetTimeout(delay, cb)
}

func (rt *Runtime) SetInterval(period time.Duration, cb func()) (TimerID, error) {
	return rt.timers.SetInterval(period, cb)
}

func (rt *Runtime) ClearTimeout(id TimerID) bool {
	return rt.timers.ClearTimeout(id)
}

func (rt *Runtime) ClearInterval(id TimerID) bool {
	return rt.timers.ClearInterval(id)
}

// Log writes to the Console, logging write failures.
func (rt *Runtime) Log(args ...any) {
	if err := rt.console.Log(args...); err != nil {
		rt.log.Printf("console write failed: %v", err)
	}
}

// Eval runs the script on the calling goroutine.
func (rt *Runtime) Eval(script Script) error {
	if err := script(rt); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	return nil
}

// Queue schedules the task on the event loop. It is safe for concurrent use.
func (rt *Runtime) Queue(task Task) error {
	return rt.ioc.Post(func() {
		rt.execute(task)
	})
}

func (rt *Runtime) execute(task Task) {
	if rt.stopped {
		return
	}

	if err := task.Execute(rt); err != nil {
		rt.stop(err)
		return
	}

	if s, ok := task.(Stopper); ok && s.Stop() {
		rt.stop(nil)
	}
}

// Spawn runs work on the worker pool and then done, with work's error, on the
// event loop. A panic in work is recovered and handed to done as an error. Run
// does not return before done ran. Spawn is safe for concurrent use.
func (rt *Runtime) Spawn(work func() error, done func(error)) error {
	release := rt.ioc.Hold()

	err := rt.pool.Submit(func() {
		werr := rt.protect(work)
		perr := rt.ioc.Post(func() {
			release()
			if done != nil {
				done(werr)
			}
		})
		if perr != nil {
			release()
		}
	})
	if err != nil {
		release()
		return fmt.Errorf("spawn: %w", err)
	}
	return nil
}

func (rt *Runtime) protect(work func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Printf("panic in spawned work: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("spawned work panicked: %v", r)
		}
	}()
	return work()
}

// Run runs the event loop. It returns nil once nothing is pending (unless the
// runtime keeps alive), the error of the first failing task, or ctx's error
// if ctx is done first. A stopped runtime can be run again.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.stopped = false
	rt.err = nil

	stop := context.AfterFunc(ctx, func() {
		_ = rt.ioc.Post(func() {
			rt.stop(ctx.Err())
		})
	})
	defer stop()

	for !rt.stopped {
		if !rt.opts.keepAlive && rt.ioc.Pending() == 0 {
			break
		}

		if err := rt.ioc.RunOne(); err != nil && err != alanerrors.ErrTimeout {
			return err
		}
	}

	return rt.err
}

// Stop makes Run return after the handlers which are already ready. It is
// safe for concurrent use.
func (rt *Runtime) Stop() {
	_ = rt.ioc.Post(func() {
		rt.stop(nil)
	})
}

func (rt *Runtime) stop(err error) {
	if rt.stopped {
		return
	}
	rt.stopped = true
	rt.err = err
}

// Stopped returns true once a task stopped the runtime.
func (rt *Runtime) Stopped() bool {
	return rt.stopped
}

// Close clears all timers, releases the worker pool and closes the loop.
func (rt *Runtime) Close() error {
	rt.timers.Close()
	rt.pool.Release()
	return rt.ioc.Close()
}
