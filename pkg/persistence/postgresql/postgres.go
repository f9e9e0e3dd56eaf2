// Package postgresql provides PostgreSQL persistence for approval workflows.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/coopcore/approvals/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting repositories run
// inside or outside a transaction unchanged.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflowRepo  *WorkflowRepository
	requestRepo   *RequestRepository
	executionRepo *ExecutionRepository
}

// NewPersistence opens the database, runs migrations and wires the
// repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		requestRepo:   NewRequestRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) RequestRepository() persistence.RequestRepository {
	return p.requestRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

// txRepositories binds the repositories to one open transaction.
type txRepositories struct {
	workflowRepo  *WorkflowRepository
	requestRepo   *RequestRepository
	executionRepo *ExecutionRepository
}

func (t *txRepositories) WorkflowRepository() persistence.WorkflowRepository {
	return t.workflowRepo
}

func (t *txRepositories) RequestRepository() persistence.RequestRepository {
	return t.requestRepo
}

func (t *txRepositories) ExecutionRepository() persistence.ExecutionRepository {
	return t.executionRepo
}

// Transaction runs fn inside a single database transaction. Any error from
// fn rolls back every write performed through the bound repositories.
func (p *Persistence) Transaction(ctx context.Context, fn func(persistence.Repositories) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	repos := &txRepositories{
		workflowRepo:  NewWorkflowRepository(tx, p.logger),
		requestRepo:   NewRequestRepository(tx, p.logger),
		executionRepo: NewExecutionRepository(tx, p.logger),
	}

	err = fn(repos)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
