// Package cli is a line-oriented REPL driving a Runtime's timers.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/talostrading/alan"
	"github.com/talostrading/alan/alanerrors"
)

const (
	Welcome = "Welcome to alan!"
	Prompt  = "> "
)

const usage = `commands:
  log <words...>                 print the words
  timeout <ms> <words...>        print the words once after ms
  interval <ms> <words...>       print the words every ms
  cron "<expr>" <words...>       print the words at every cron activation
  clear <id>                     cancel a timer
  timers                         list active timers
  drift                          print the timer drift histogram
  help                           print this message
  exit                           stop the runtime`

// evalTask evaluates one line on the event loop.
type evalTask struct {
	line string
	exit bool
}

func (t *evalTask) Execute(rt *alan.Runtime) error {
	cmd, err := Parse(t.line)
	if err == nil {
		t.exit = cmd.Name == "exit"
		err = Eval(rt, cmd)
	}
	if err != nil {
		rt.Log("error:", err)
	}

	if !t.exit {
		_ = rt.Console().Printf(Prompt)
	}
	return nil
}

func (t *evalTask) Stop() bool {
	return t.exit
}

// Install prints the welcome banner and starts reading lines from in on the
// runtime's worker pool. Each line is evaluated on the event loop. The runtime
// stays alive until in is exhausted or an exit command runs.
func Install(rt *alan.Runtime, in io.Reader) error {
	if err := rt.Console().Printf("%s\n%s", Welcome, Prompt); err != nil {
		return err
	}

	return rt.Spawn(func() error {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := scanner.Text()
			if err := rt.Queue(&evalTask{line: line}); err != nil {
				return err
			}
			if strings.TrimSpace(line) == "exit" {
				return nil
			}
		}
		return scanner.Err()
	}, func(err error) {
		if err != nil && !errors.Is(err, alanerrors.ErrClosed) {
			rt.Logger().Printf("read input: %v", err)
		}
	})
}

// Eval runs a single command against the runtime. It must be called on the
// event loop goroutine.
func Eval(rt *alan.Runtime, cmd Command) error {
	timers := rt.Timers()

	switch cmd.Name {
	case "":
		return nil
	case "help":
		rt.Log(usage)
	case "exit":
		rt.Log("bye")
	case "log":
		rt.Log(words(cmd.Args)...)
	case "timeout", "interval":
		if len(cmd.Args) < 1 {
			return fmt.Errorf("usage: %s <ms> <words...>", cmd.Name)
		}
		delay, err := parseMillis(cmd.Args[0])
		if err != nil {
			return err
		}
		msg := words(cmd.Args[1:])
		cb := func() { rt.Log(msg...) }

		var id alan.TimerID
		if cmd.Name == "timeout" {
			id, err = timers.SetTimeout(delay, cb)
		} else {
			id, err = timers.SetInterval(delay, cb)
		}
		if err != nil {
			return err
		}
		rt.Log(id)
	case "cron":
		if len(cmd.Args) < 1 {
			return fmt.Errorf("usage: cron \"<expr>\" <words...>")
		}
		msg := words(cmd.Args[1:])
		id, err := timers.SetSchedule(cmd.Args[0], func() { rt.Log(msg...) })
		if err != nil {
			return err
		}
		rt.Log(id)
	case "clear":
		if len(cmd.Args) != 1 {
			return fmt.Errorf("usage: clear <id>")
		}
		id, err := strconv.ParseUint(cmd.Args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timer id %q: %w", cmd.Args[0], err)
		}
		rt.Log(timers.Clear(alan.TimerID(id)))
	case "timers":
		for _, id := range timers.Active() {
			kind, _ := timers.Kind(id)
			rt.Log(id, kind)
		}
	case "drift":
		return timers.Drift().Report(rt.Console().Writer())
	default:
		return fmt.Errorf("%w %q, try help", alanerrors.ErrUnknownCommand, cmd.Name)
	}
	return nil
}

const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", s, err)
	}
	if ms > maxMillis {
		return 0, fmt.Errorf("invalid delay %q: at most %d ms", s, maxMillis)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func words(args []string) []any {
	xs := make([]any, len(args))
	for i, arg := range args {
		xs[i] = arg
	}
	return xs
}
