// Package server assembles the HTTP host around a plugin manager: it
// discovers and initializes registered plugins, mounts their web and API
// routes, and exposes the core lifecycle endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/logging"
)

// Server hosts the plugin manager behind an HTTP listener.
//
// Usage:
//
//	s := server.New(
//		server.WithPlugin(func() docbridge.Plugin { return ocr.Plugin() }),
//	)
//	s.Start()
//
// Plugins are discovered when the server is built and initialized when Start
// is called, so route mounting sees every registered plugin while Init errors
// surface in /api/health rather than aborting boot.
type Server struct {
	host string
	port int

	// Context propagated to plugin Init and request handlers.
	baseContext context.Context

	manager    *docbridge.Manager
	router     chi.Router
	httpServer *http.Server

	// Optional config file watcher, started with the server.
	watchPath string
	watcher   *docbridge.ConfigWatcher
}

// Manager returns the plugin manager. Useful between New and Start for wiring
// that needs discovered plugin instances.
func (s *Server) Manager() *docbridge.Manager {
	return s.manager
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start initializes plugins and serves requests. Blocks until Shutdown is
// called or a SIGINT/SIGTERM arrives.
func (s *Server) Start() error {
	ctx := s.baseContext
	s.manager.InitAll(ctx)

	summary := s.manager.HealthSummary()
	logging.Infow(ctx, "plugins initialized",
		"discovered", summary.Discovered,
		"initialized", summary.Initialized,
		"failed", summary.Failed,
		"invalid", summary.Invalid,
		"disabled", summary.Disabled)

	if s.watchPath != "" {
		w, err := docbridge.WatchConfig(ctx, s.manager, s.watchPath)
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		s.watcher = w
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	done := make(chan struct{})
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
		sig := <-stop
		logging.Infow(ctx, "graceful shutdown triggered", "signal", sig.String())
		s.Shutdown()
		close(done)
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer ln.Close()

	logging.Infof(ctx, "listening for traffic on http://%s", addr)
	err = s.httpServer.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err // The server wasn't shutdown gracefully.
	}

	<-done
	return nil
}

// Shutdown drains connections, stops the config watcher, and cleans up
// plugins in reverse dependency order.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(s.baseContext, 10*time.Second)
	defer cancel()

	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
		if err != nil {
			logging.Errorw(s.baseContext, "shutdown error", "error", err)
		}
		s.httpServer = nil
	}

	s.manager.Shutdown(ctx)
	return err
}
