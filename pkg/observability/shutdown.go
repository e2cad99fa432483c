package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager drains the API server and runs registered stop hooks when
// SIGINT or SIGTERM arrives. Hooks run after the listener has drained, so
// in-flight requests keep their backing services until the end.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	hooks []shutdownHook
}

type shutdownHook struct {
	name string
	stop func(context.Context) error
}

// NewShutdownManager creates a manager draining the given server. A zero
// timeout defaults to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// OnShutdown registers a named stop hook. Hooks run in registration order
// after the API server has drained.
func (sm *ShutdownManager) OnShutdown(name string, stop func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{name: name, stop: stop})
}

// WaitForShutdown blocks until a termination signal, then drains the server
// and runs every hook within the shutdown timeout.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("received %s, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var failed int
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API server shutdown error")
			failed++
		}
	}

	sm.mu.Lock()
	hooks := sm.hooks
	sm.mu.Unlock()

	for _, h := range hooks {
		if err := h.stop(ctx); err != nil {
			sm.logger.WithError(err).Errorf("%s shutdown error", h.name)
			failed++
		}
		if ctx.Err() != nil {
			return fmt.Errorf("shutdown timed out after %s", sm.timeout)
		}
	}

	if failed > 0 {
		return fmt.Errorf("shutdown finished with %d errors", failed)
	}
	sm.logger.Info("graceful shutdown complete")
	return nil
}
