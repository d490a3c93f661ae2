// Command alan-run runs the interval/timeout demo: "Interval" is printed every
// -interval until a timeout fires after -cancel-after, cancels the interval
// and prints "Interval canceled".
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/talostrading/alan"
	"github.com/talostrading/alan/config"
	"github.com/talostrading/alan/demo"
	"github.com/talostrading/alan/internal/profiling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		interval    = flag.Duration("interval", cfg.Interval, "period of the interval timer")
		cancelAfter = flag.Duration("cancel-after", cfg.CancelAfter, "delay after which the interval is canceled")
		drift       = flag.Bool("drift", cfg.DriftReport, "print the timer drift histogram on exit")
		profile     = flag.String("profile", cfg.ProfileAddr, "serve fgprof on this address, e.g. localhost:6060")
	)
	flag.Parse()

	if *profile != "" {
		addr, err := profiling.Serve(*profile)
		if err != nil {
			log.Fatalf("profiling: %v", err)
		}
		log.Printf("serving wall-clock profiles on http://%s%s", addr, profiling.Path)
	}

	rt, err := alan.NewRuntime(alan.WithWorkers(cfg.Workers))
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Eval(demo.Script(*interval, *cancelAfter)); err != nil {
		log.Fatal(err)
	}

	if err := rt.Run(ctx); err != nil {
		log.Printf("run: %v", err)
	}

	if *drift {
		if err := rt.Timers().Drift().Report(os.Stderr); err != nil {
			log.Printf("drift report: %v", err)
		}
	}
}
