// Command alan-cli is an interactive shell for timers. Type help for the list
// of commands.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/talostrading/alan"
	"github.com/talostrading/alan/cli"
	"github.com/talostrading/alan/config"
	"github.com/talostrading/alan/internal/profiling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		workers = flag.Int("workers", cfg.Workers, "size of the worker pool")
		profile = flag.String("profile", cfg.ProfileAddr, "serve fgprof on this address, e.g. localhost:6060")
	)
	flag.Parse()

	if *profile != "" {
		addr, err := profiling.Serve(*profile)
		if err != nil {
			log.Fatalf("profiling: %v", err)
		}
		log.Printf("serving wall-clock profiles on http://%s%s", addr, profiling.Path)
	}

	rt, err := alan.NewRuntime(alan.WithWorkers(*workers))
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	if err := cli.Install(rt, os.Stdin); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("run: %v", err)
	}
}
