// Package profiling serves wall-clock profiles of a running alan process.
package profiling

import (
	"log"
	"net"
	"net/http"

	"github.com/felixge/fgprof"
)

const Path = "/debug/fgprof"

// Handler serves fgprof profiles on Path. The event loop spends most of its
// time blocked in the poller, which only a wall-clock profiler shows.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, fgprof.Handler())
	return mux
}

// Serve starts serving Handler on addr in the background and returns the
// address it listens on.
func Serve(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := http.Serve(ln, Handler()); err != nil {
			log.Printf("profiling server on %s stopped: %v", ln.Addr(), err)
		}
	}()

	return ln.Addr(), nil
}
