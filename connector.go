package pgephemeral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// duplicateDatabaseCode is the PostgreSQL error code raised by CREATE
// DATABASE when the name is already taken (SQLSTATE 42P04).
const duplicateDatabaseCode = "42P04"

// AdminConn is an open administrative session able to execute statements
// such as CREATE DATABASE and DROP DATABASE.
type AdminConn interface {
	// Exec runs a statement, discarding any rows.
	Exec(ctx context.Context, stmt string, args ...any) error
	// Ping verifies the session is still usable.
	Ping(ctx context.Context) error
	// Close releases the session.
	Close() error
}

// Connector opens administrative sessions from connection parameters. It is
// the only database-client capability the scopes require; tests substitute
// a fake to exercise lifecycle logic without a server.
type Connector interface {
	Connect(ctx context.Context, params ConnParams) (AdminConn, error)
}

// PgxConnector implements Connector on database/sql with the pgx stdlib
// driver. The zero value is ready to use.
type PgxConnector struct{}

// Connect opens and verifies a session. A connection that cannot be pinged
// is closed and reported as a failure, so readiness probes see one uniform
// signal.
func (PgxConnector) Connect(ctx context.Context, params ConnParams) (AdminConn, error) {
	db, err := sql.Open("pgx", params.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", params.Redacted(), err)
	}

	// Administrative sessions run a handful of sequential statements; a
	// single underlying connection avoids surprises with statements that
	// cannot run inside a transaction.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &sqlAdminConn{db: db}, nil
}

type sqlAdminConn struct {
	db *sql.DB
}

func (c *sqlAdminConn) Exec(ctx context.Context, stmt string, args ...any) error {
	_, err := c.db.ExecContext(ctx, stmt, args...)
	return err
}

func (c *sqlAdminConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqlAdminConn) Close() error {
	return c.db.Close()
}

// IsDuplicateDatabase checks whether the given error is a PostgreSQL
// duplicate-database violation, the signal behind ErrNameCollision.
func IsDuplicateDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == duplicateDatabaseCode
}

// mapCreateError maps a CREATE DATABASE failure to the domain taxonomy,
// preserving the original error for debugging.
func mapCreateError(err error) error {
	if err == nil {
		return nil
	}
	if IsDuplicateDatabase(err) {
		return fmt.Errorf("%w: %w", ErrNameCollision, err)
	}
	return fmt.Errorf("%w: %w", ErrCreateFailed, err)
}
