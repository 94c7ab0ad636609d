package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/lyzr/launchpad/common/logger"
)

// Telemetry serves the pprof endpoints on a loopback port
type Telemetry struct {
	log    *logger.Logger
	server *http.Server
}

// New creates telemetry components
func New(pprofPort int, log *logger.Logger) *Telemetry {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &Telemetry{
		log: log,
		server: &http.Server{
			Addr:              fmt.Sprintf("localhost:%d", pprofPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Addr returns the listen address
func (t *Telemetry) Addr() string {
	return t.server.Addr
}

// Start binds the pprof listener and serves in the background
func (t *Telemetry) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.server.Addr)
	if err != nil {
		return fmt.Errorf("pprof listen: %w", err)
	}
	t.server.Addr = ln.Addr().String()

	go func() {
		t.log.Info("pprof server starting", "addr", t.server.Addr)
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("pprof server error", "error", err)
		}
	}()
	return nil
}

// Close stops the pprof listener
func (t *Telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}
