package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/selq/internal/engine"
	"github.com/roach88/selq/internal/kvstore"
	"github.com/roach88/selq/internal/pgstore"
	"github.com/roach88/selq/internal/store"
)

// openBackend opens the record backend named by cfg. For badger an empty
// database means in-memory.
func openBackend(ctx context.Context, cfg Config) (engine.Backend, error) {
	slog.Debug("opening backend", "backend", cfg.Backend, "database", cfg.Database)

	switch cfg.Backend {
	case BackendSQLite:
		return store.Open(cfg.Database)
	case BackendBadger:
		return kvstore.Open(cfg.Database)
	case BackendPostgres:
		return pgstore.Open(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openEngine opens the backend and an engine over it. The returned
// cleanup stops the engine and closes the backend.
func openEngine(ctx context.Context, cfg Config) (*engine.Engine, func(), error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open "+cfg.Backend+" backend", err)
	}

	eng, err := engine.New(ctx, backend, engine.WithLogger(slog.Default()))
	if err != nil {
		backend.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	cleanup := func() {
		eng.Stop()
		if err := backend.Close(); err != nil {
			slog.Error("error closing backend", "error", err)
		}
	}
	return eng, cleanup, nil
}
