package relayserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// shutdownTimeout is how long in-flight requests get after the context ends.
const shutdownTimeout = 5 * time.Second

// Run listens on the configured address and serves until ctx is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context, _ *RunCommand) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Addr, err)
	}
	return a.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("starting relay server", "addr", listener.Addr().String(),
		"store", a.config.Store, "read_only", a.IsReadOnly())

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Migrate prepares the store schema.
func (a *App) Migrate(ctx context.Context, _ *MigrateCommand) error {
	if err := a.store.Migrate(ctx); err != nil {
		return err
	}
	a.logger.Info("share store migrated", "store", a.config.Store)
	return nil
}
