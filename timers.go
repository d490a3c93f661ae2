package alan

import (
	"fmt"
	"log"
	"runtime/debug"
	"slices"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/talostrading/alan/alanerrors"
	"github.com/talostrading/alan/util"
)

// TimerID identifies a timer in a Timers registry. Ids start at 1 and are
// never reused.
type TimerID uint64

type TimerKind uint8

const (
	KindTimeout TimerKind = iota
	KindInterval
	KindSchedule
)

func (k TimerKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindInterval:
		return "interval"
	case KindSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

type timerEntry struct {
	id    TimerID
	kind  TimerKind
	timer *Timer
	cb    func()

	// armedAt and delay give the expected time of the next expiration.
	armedAt time.Time
	delay   time.Duration
	period  time.Duration
	// fired is the Timer's expiration count when it was last armed.
	fired uint64

	expr *cronexpr.Expression
}

func (e *timerEntry) expected() time.Time {
	if e.kind != KindInterval {
		return e.armedAt.Add(e.delay)
	}
	n := e.timer.Fired() - e.fired
	return e.armedAt.Add(e.delay + time.Duration(n-1)*e.period)
}

// Timers hands out numbered timeouts, intervals and cron schedules on an IO,
// like the setTimeout/setInterval/clearTimeout family of a script host.
//
// Timers is not safe for concurrent use: call it from the IO goroutine or
// before the loop runs.
type Timers struct {
	ioc *IO
	log *log.Logger

	next    TimerID
	entries map[TimerID]*timerEntry

	drift   *util.TtyHist
	panics  int
	onPanic func(TimerID, any)

	now func() time.Time
}

func NewTimers(ioc *IO, logger *log.Logger) *Timers {
	if logger == nil {
		logger = NewLogger()
	}

	return &Timers{
		ioc:     ioc,
		log:     logger,
		entries: make(map[TimerID]*timerEntry),
		drift: util.NewTtyHist(util.TtyHistOpts{
			Name:      "timer_drift",
			Scale:     "us",
			MinPct:    0.1,
			Min:       0,
			Max:       time.Minute.Microseconds(),
			Precision: 3,
		}),
		now: time.Now,
	}
}

// OnPanic sets a function called with the timer id and the recovered value
// whenever a callback panics.
func (t *Timers) OnPanic(fn func(TimerID, any)) {
	t.onPanic = fn
}

// SetTimeout calls cb once after delay. Negative delays count as zero.
func (t *Timers) SetTimeout(delay time.Duration, cb func()) (TimerID, error) {
	e, err := t.add(KindTimeout, cb)
	if err != nil {
		return 0, err
	}

	if err := t.arm(e, max(delay, 0)); err != nil {
		t.remove(e)
		return 0, err
	}
	return e.id, nil
}

// SetInterval calls cb every period until the timer is cleared.
func (t *Timers) SetInterval(period time.Duration, cb func()) (TimerID, error) {
	e, err := t.add(KindInterval, cb)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		period = time.Millisecond
	}
	e.armedAt = t.now()
	e.delay = period
	e.period = period
	e.fired = e.timer.Fired()

	if err := e.timer.ScheduleRepeating(period, func() { t.fire(e) }); err != nil {
		t.remove(e)
		return 0, err
	}
	return e.id, nil
}

// SetSchedule calls cb at every activation of a cron expression. Expressions
// may have 5, 6 or 7 fields; the 7-field form starts with seconds.
func (t *Timers) SetSchedule(expr string, cb func()) (TimerID, error) {
	parsed, err := cronexpr.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", expr, err)
	}

	next := parsed.Next(t.now())
	if next.IsZero() {
		return 0, fmt.Errorf("schedule %q: %w", expr, alanerrors.ErrNoActivation)
	}

	e, err := t.add(KindSchedule, cb)
	if err != nil {
		return 0, err
	}
	e.expr = parsed

	if err := t.arm(e, time.Until(next)); err != nil {
		t.remove(e)
		return 0, err
	}
	return e.id, nil
}

// ClearTimeout cancels the timer with the given id. Unknown ids are ignored;
// the return value tells whether a timer was cancelled.
func (t *Timers) ClearTimeout(id TimerID) bool {
	return t.Clear(id)
}

// ClearInterval is the same as ClearTimeout: both work on any timer kind.
func (t *Timers) ClearInterval(id TimerID) bool {
	return t.Clear(id)
}

func (t *Timers) Clear(id TimerID) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	t.remove(e)
	return true
}

// Kind returns the kind of an active timer.
func (t *Timers) Kind(id TimerID) (TimerKind, bool) {
	e, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// Active returns the ids of the timers which have not been cleared or, for
// timeouts, fired, in ascending order.
func (t *Timers) Active() []TimerID {
	ids := make([]TimerID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Timers) Len() int {
	return len(t.entries)
}

// Drift is the distribution of how late callbacks ran relative to their
// expected time, in microseconds.
func (t *Timers) Drift() *util.TtyHist {
	return t.drift
}

// Panics returns the number of callbacks which panicked.
func (t *Timers) Panics() int {
	return t.panics
}

// Close clears every timer.
func (t *Timers) Close() {
	for _, e := range t.entries {
		t.remove(e)
	}
}

func (t *Timers) add(kind TimerKind, cb func()) (*timerEntry, error) {
	timer, err := NewTimer(t.ioc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	t.next++
	e := &timerEntry{
		id:    t.next,
		kind:  kind,
		timer: timer,
		cb:    cb,
	}
	t.entries[e.id] = e
	return e, nil
}

func (t *Timers) arm(e *timerEntry, delay time.Duration) error {
	e.armedAt = t.now()
	e.delay = delay
	return e.timer.ScheduleOnce(delay, func() { t.fire(e) })
}

func (t *Timers) remove(e *timerEntry) {
	delete(t.entries, e.id)
	if err := e.timer.Close(); err != nil {
		t.log.Printf("close timer id=%d kind=%s err=%v", e.id, e.kind, err)
	}
}

func (t *Timers) fire(e *timerEntry) {
	now := t.now()
	t.drift.Add(now.Sub(e.expected()).Microseconds())

	if e.kind == KindTimeout {
		t.remove(e)
	}

	t.call(e)

	if e.kind != KindSchedule {
		return
	}
	if _, ok := t.entries[e.id]; !ok {
		// cleared by its own callback
		return
	}

	next := e.expr.Next(t.now())
	if next.IsZero() {
		t.remove(e)
		return
	}
	if err := t.arm(e, time.Until(next)); err != nil {
		t.log.Printf("re-arm schedule id=%d err=%v", e.id, err)
		t.remove(e)
	}
}

func (t *Timers) call(e *timerEntry) {
	defer func() {
		if r := recover(); r != nil {
			t.panics++
			t.log.Printf("panic in %s id=%d: %v\n%s", e.kind, e.id, r, debug.Stack())
			if t.onPanic != nil {
				t.onPanic(e.id, r)
			}
		}
	}()

	e.cb()
}
