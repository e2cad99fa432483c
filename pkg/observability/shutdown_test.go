package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManagerRunsHooksInOrder(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, &http.Server{}, time.Second)

	var order []string
	sm.OnShutdown("health server", func(context.Context) error {
		order = append(order, "health server")
		return nil
	})
	sm.OnShutdown("cron scheduler", func(context.Context) error {
		order = append(order, "cron scheduler")
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown() }()

	// Give WaitForShutdown a moment to install its signal handler.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.Equal(t, []string{"health server", "cron scheduler"}, order)
}
