package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "sqlplugin/internal/mcp"
)

// shutdownTimeout bounds how long in-flight lookups may delay exit.
const shutdownTimeout = 10 * time.Second

// ServeMCP runs the plugin as a standalone MCP server on stdin/stdout.
// It blocks until stdin closes or the process is interrupted.
func (a *App) ServeMCP(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := a.Stop(stopCtx); err != nil {
			a.logger.Warn("Shutdown incomplete", "err", err)
		}
	}()

	if err := a.Watch(ctx); err != nil {
		a.logger.Warn("Configuration watcher not started", "err", err)
	}

	srv := mcpserver.New(a.plugin, a.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.Info("Interrupted")
		return nil
	}
}
