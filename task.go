package alan

// Task is a unit of work executed on the Runtime's event loop. A Task which
// returns an error ends Runtime.Run with that error.
type Task interface {
	Execute(rt *Runtime) error
}

// Stopper is implemented by tasks which can end Runtime.Run after they
// execute.
type Stopper interface {
	Stop() bool
}

type TaskFunc func(rt *Runtime) error

func (f TaskFunc) Execute(rt *Runtime) error {
	return f(rt)
}

// Script is the program evaluated by Runtime.Eval. It registers timers and
// tasks which then run under Runtime.Run.
type Script func(rt *Runtime) error
