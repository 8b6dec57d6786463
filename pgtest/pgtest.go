// Package pgtest provides testing.TB conveniences over pgephemeral. It
// separates fixture breakage from test failure the way test authors expect:
// infrastructure problems fail the test with a fixture message (or skip it
// when docker is unavailable), while the body's own assertions fail it
// normally.
package pgtest

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"strconv"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/pgephemeral"
)

// EnvServerURL names the environment variable checked by ServerFromEnv.
// Setting it points tests at an existing server (useful in CI) instead of
// provisioning a container per suite.
const EnvServerURL = "PGEPHEMERAL_TEST_SERVER_URL"

// DefaultImage is the image RunWithServer launches when the caller passes
// an empty identifier.
const DefaultImage = "postgres:16-alpine"

// ServerFromEnv returns administrative connection parameters parsed from
// EnvServerURL, or ok=false when the variable is unset.
func ServerFromEnv() (params pgephemeral.ConnParams, ok bool) {
	raw := os.Getenv(EnvServerURL)
	if raw == "" {
		return pgephemeral.ConnParams{}, false
	}
	parsed, err := ParseURL(raw)
	if err != nil {
		return pgephemeral.ConnParams{}, false
	}
	return parsed, true
}

// ParseURL converts a postgres:// DSN into connection parameters.
func ParseURL(raw string) (pgephemeral.ConnParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return pgephemeral.ConnParams{}, err
	}

	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return pgephemeral.ConnParams{}, err
		}
	}

	params := pgephemeral.ConnParams{
		Host:     u.Hostname(),
		Port:     port,
		Database: "postgres",
	}
	if u.User != nil {
		params.User = u.User.Username()
		params.Password, _ = u.User.Password()
	}
	if len(u.Path) > 1 {
		params.Database = u.Path[1:]
	}
	switch u.Query().Get("sslmode") {
	case "require":
		params.TLS = pgephemeral.TLSRequire
	case "verify-full":
		params.TLS = pgephemeral.TLSVerifyFull
	}
	return params, nil
}

// RunWithServer provisions an ephemeral server (or reuses one from
// EnvServerURL) and runs fn with administrative parameters. Fixture
// breakage fails the test; teardown failures are reported after fn ran.
func RunWithServer(t *testing.T, image string, fn func(t *testing.T, admin pgephemeral.ConnParams)) {
	t.Helper()

	if params, ok := ServerFromEnv(); ok {
		fn(t, params)
		return
	}

	if image == "" {
		image = DefaultImage
	}

	result := pgephemeral.WithServer(image, func(admin pgephemeral.ConnParams) (struct{}, error) {
		fn(t, admin)
		return struct{}{}, nil
	})
	reportResult(t, result)
}

// RunWithDatabase creates a temporary database on the given server and runs
// fn against an open connection to it. The database is dropped when fn
// returns, however it returns.
func RunWithDatabase(t *testing.T, admin pgephemeral.ConnParams, fn func(t *testing.T, db *sql.DB)) {
	t.Helper()

	result := pgephemeral.WithDatabase(admin, admin.TLS, func(params pgephemeral.ConnParams) (struct{}, error) {
		db, err := sql.Open("pgx", params.URL())
		if err != nil {
			return struct{}{}, err
		}
		defer func() {
			if err := db.Close(); err != nil {
				t.Logf("Warning: failed to close database connection: %v", err)
			}
		}()

		fn(t, db)
		return struct{}{}, nil
	})
	reportResult(t, result)
}

// WithTx runs fn inside a transaction that is always rolled back, on top of
// a temporary database. Useful for suites that share one database but need
// per-test isolation.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		// sql.ErrTxDone is expected if fn committed or rolled back itself.
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// reportResult translates a scope result into test outcomes: provisioning
// problems skip (no docker is an environment issue, not a bug), other
// infrastructure failures fail the test, teardown failures fail it after
// the body already ran.
func reportResult(t *testing.T, result pgephemeral.Result[struct{}]) {
	t.Helper()

	if result.Err != nil {
		if errors.Is(result.Err, pgephemeral.ErrProvisionFailed) {
			t.Skipf("skipping: could not provision database server: %v", result.Err)
		}
		// The wrapped fn never returns an error itself, so any callback
		// failure here came from this package's own plumbing. Everything
		// in this slot is fixture breakage.
		t.Fatalf("database fixture failed: %v", result.Err)
	}
	if result.TeardownErr != nil {
		t.Errorf("database fixture teardown failed: %v", result.TeardownErr)
	}
}
