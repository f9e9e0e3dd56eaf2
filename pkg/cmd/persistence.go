// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/coopcore/approvals/pkg/persistence/memory"
	"github.com/coopcore/approvals/pkg/persistence/postgresql"
)

// NewPersistence creates the persistence layer for a command. An empty or
// "memory" database URL yields the in-memory store for local development;
// anything else is treated as a PostgreSQL connection URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	if databaseURL == "" || databaseURL == "memory" {
		logger.WarnContext(ctx, "Using in-memory persistence, data will not survive restarts")

		return memory.NewPersistence()
	}

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
	}

	return store
}
