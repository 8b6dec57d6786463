//go:build integration

package pgephemeral_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/pgephemeral"
	"github.com/phrazzld/pgephemeral/internal/platform/logger"
)

const testImage = "postgres:16-alpine"

func TestMain(m *testing.M) {
	logger.InitForTests()
	os.Exit(m.Run())
}

// requireDocker skips the test when no usable docker daemon is around, so
// the integration suite degrades gracefully on developer machines.
func requireDocker(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	if err := exec.Command("docker", "ps").Run(); err != nil {
		t.Skip("docker not running")
	}
}

// databaseExists checks the server's catalog for a database name over the
// given administrative parameters.
func databaseExists(t *testing.T, admin pgephemeral.ConnParams, name string) bool {
	t.Helper()

	db, err := sql.Open("pgx", admin.URL())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pg_database WHERE datname = $1", name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

// TestServerAndDatabaseLifecycle runs the nested happy path: fresh server,
// fresh database, real DDL and a query inside, and verifies both resources
// are gone afterwards.
func TestServerAndDatabaseLifecycle(t *testing.T) {
	requireDocker(t)

	var adminParams, dbParams pgephemeral.ConnParams

	result := pgephemeral.WithServer(testImage, func(admin pgephemeral.ConnParams) (int, error) {
		adminParams = admin

		inner := pgephemeral.WithDatabase(admin, pgephemeral.TLSDisable, func(params pgephemeral.ConnParams) (int, error) {
			dbParams = params

			db, err := sql.Open("pgx", params.URL())
			if err != nil {
				return 0, err
			}
			defer func() { _ = db.Close() }()

			if _, err := db.Exec("CREATE TABLE test()"); err != nil {
				return 0, fmt.Errorf("create table: %w", err)
			}
			rows, err := db.Query("SELECT * FROM test")
			if err != nil {
				return 0, fmt.Errorf("select: %w", err)
			}
			defer func() { _ = rows.Close() }()
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 42, nil
		})

		require.NoError(t, inner.Err, "inner database scope should succeed")
		require.NoError(t, inner.TeardownErr, "database teardown should succeed")

		assert.False(t, databaseExists(t, admin, dbParams.Database),
			"the temporary database must be gone after WithDatabase returns")

		return inner.Unwrap()
	}, pgephemeral.WithReadyTimeout(2*time.Minute))

	require.NoError(t, result.Err, "server scope should succeed")
	require.NoError(t, result.TeardownErr, "server teardown should succeed")
	assert.Equal(t, 42, result.Value)

	// The server that existed during the callback must no longer accept
	// connections.
	db, err := sql.Open("pgx", adminParams.URL())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, db.PingContext(ctx), "the server should be unreachable after teardown")
}

// TestDatabaseCallbackFailureStillDropped verifies a deliberately failing
// callback surfaces as ErrCallbackFailed with the original error attached,
// and the generated database is confirmed dropped afterwards.
func TestDatabaseCallbackFailureStillDropped(t *testing.T) {
	requireDocker(t)

	cause := errors.New("deliberate test failure")

	result := pgephemeral.WithServer(testImage, func(admin pgephemeral.ConnParams) (struct{}, error) {
		var dbName string
		inner := pgephemeral.WithDatabase(admin, pgephemeral.TLSDisable, func(params pgephemeral.ConnParams) (struct{}, error) {
			dbName = params.Database
			return struct{}{}, cause
		})

		require.ErrorIs(t, inner.Err, pgephemeral.ErrCallbackFailed)
		require.ErrorIs(t, inner.Err, cause, "the original error must be attached")
		require.NoError(t, inner.TeardownErr, "the drop should still succeed")

		assert.False(t, databaseExists(t, admin, dbName),
			"the database must be dropped despite the callback failure")

		return struct{}{}, nil
	}, pgephemeral.WithReadyTimeout(2*time.Minute))

	require.NoError(t, result.Err)
	require.NoError(t, result.TeardownErr)
}

// TestOwnerRoleLifecycle verifies the dedicated-role flow against a real
// server: the callback can connect as the owner role, and both database and
// role are gone afterwards.
func TestOwnerRoleLifecycle(t *testing.T) {
	requireDocker(t)

	result := pgephemeral.WithServer(testImage, func(admin pgephemeral.ConnParams) (struct{}, error) {
		var owner string
		inner := pgephemeral.WithDatabase(admin, pgephemeral.TLSDisable, func(params pgephemeral.ConnParams) (struct{}, error) {
			owner = params.User

			db, err := sql.Open("pgx", params.URL())
			if err != nil {
				return struct{}{}, err
			}
			defer func() { _ = db.Close() }()
			if _, err := db.Exec("CREATE TABLE owned()"); err != nil {
				return struct{}{}, fmt.Errorf("create table as owner role: %w", err)
			}
			return struct{}{}, nil
		}, pgephemeral.WithOwnerRole())

		require.NoError(t, inner.Err)
		require.NoError(t, inner.TeardownErr)

		db, err := sql.Open("pgx", admin.URL())
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM pg_roles WHERE rolname = $1", owner).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count, "the owner role must be dropped with its database")

		return struct{}{}, nil
	}, pgephemeral.WithReadyTimeout(2*time.Minute))

	require.NoError(t, result.Err)
	require.NoError(t, result.TeardownErr)
}

// TestProvisioningTimeoutCleansUp verifies a readiness budget below any
// realistic boot time yields ErrNotReady, never invokes the callback, and
// still removes the partially started container.
func TestProvisioningTimeoutCleansUp(t *testing.T) {
	requireDocker(t)

	invoked := false
	result := pgephemeral.WithServer(testImage, func(admin pgephemeral.ConnParams) (struct{}, error) {
		invoked = true
		return struct{}{}, nil
	}, pgephemeral.WithReadyTimeout(time.Millisecond), pgephemeral.WithPollInterval(time.Millisecond))

	require.ErrorIs(t, result.Err, pgephemeral.ErrNotReady)
	assert.False(t, invoked, "callback must not run when the server never became ready")
	assert.NoError(t, result.TeardownErr, "the partially started container must still be cleaned up")
}
