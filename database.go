package pgephemeral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithDatabase creates a uniquely named database on an already-reachable
// server, invokes fn with connection parameters identical to serverParams
// except for the target database (and credentials, when WithOwnerRole is
// in effect), and unconditionally drops the database afterwards. Lingering
// backends connected to the database are terminated first so the drop can
// succeed.
//
// A generated name that already exists on the server is retried exactly
// once with a fresh name before ErrNameCollision surfaces. A drop failure
// is reported in the TeardownErr slot alongside, never instead of, any
// callback failure.
func WithDatabase[T any](serverParams ConnParams, tls TLSMode, fn Callback[T], opts ...Option) (result Result[T]) {
	o := resolveOptions(opts)
	ctx := context.Background()

	adminParams := serverParams.WithTLS(tls)
	admin, err := o.connector.Connect(ctx, adminParams)
	if err != nil {
		result.Err = fmt.Errorf("%w: administrative connection: %w", ErrCreateFailed, err)
		return result
	}
	defer func() {
		if err := admin.Close(); err != nil {
			o.logger.Warn("failed to close administrative connection",
				slog.String("error", err.Error()))
		}
	}()

	handle, err := createTemporaryDatabase(ctx, admin, adminParams, o)
	if err != nil {
		result.Err = err
		return result
	}

	o.logger.Debug("temporary database created",
		slog.String("database", handle.Name),
		slog.Bool("owner_role", o.ownerRole))

	// Deferred so the drop also runs when the callback unwinds the stack in
	// a way recover cannot intercept, such as t.Fatal in a test body.
	defer func() {
		result.TeardownErr = dropTemporaryDatabase(ctx, admin, handle, o)
	}()

	result.Value, result.Err = invoke(fn, handle.Params)
	return result
}

// DatabaseHandle describes one temporary database: its generated name and
// the parameters callers use to reach it. The underlying database is owned
// by WithDatabase and dropped before it returns.
type DatabaseHandle struct {
	Name   string
	Params ConnParams

	// ownedRole is set when a dedicated login role was created alongside
	// the database and must be dropped with it.
	ownedRole bool
}

// createTemporaryDatabase generates a name and creates the database,
// retrying once with a fresh name on a duplicate-database collision. With
// the owner-role option it also provisions a dedicated login role following
// the shared-hosting methodology: role first, database owned by the role,
// public access revoked.
func createTemporaryDatabase(ctx context.Context, admin AdminConn, adminParams ConnParams, o options) (DatabaseHandle, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		name := GenerateName(o.namePrefix)

		handle, err := createNamedDatabase(ctx, admin, adminParams, name, o)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNameCollision) {
			return DatabaseHandle{}, err
		}
		o.logger.Warn("generated database name collided, retrying with a fresh name",
			slog.String("database", name))
	}
	return DatabaseHandle{}, lastErr
}

func createNamedDatabase(ctx context.Context, admin AdminConn, adminParams ConnParams, name string, o options) (DatabaseHandle, error) {
	ident := pgx.Identifier{name}.Sanitize()

	if !o.ownerRole {
		if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", ident)); err != nil {
			return DatabaseHandle{}, mapCreateError(err)
		}
		return DatabaseHandle{
			Name:   name,
			Params: adminParams.WithDatabaseName(name),
		}, nil
	}

	// The role is named after the database and owns it. The password is
	// alphanumeric so interpolating it into the literal is safe.
	password := strings.ReplaceAll(uuid.NewString(), "-", "")

	// CREATE/DROP DATABASE cannot run inside a transaction and
	// multi-statement batches are implicitly wrapped in one, so each
	// statement executes separately.
	if err := admin.Exec(ctx, fmt.Sprintf(
		"CREATE ROLE %s NOSUPERUSER NOCREATEDB NOCREATEROLE NOINHERIT LOGIN ENCRYPTED PASSWORD '%s'",
		ident, password)); err != nil {
		return DatabaseHandle{}, fmt.Errorf("%w: create owner role: %w", ErrCreateFailed, err)
	}

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s WITH OWNER = %s", ident, ident)); err != nil {
		// Roll the role back so a collision retry starts clean.
		if rbErr := admin.Exec(ctx, fmt.Sprintf("DROP ROLE %s", ident)); rbErr != nil {
			o.logger.Warn("failed to drop owner role after create failure",
				slog.String("role", name),
				slog.String("error", rbErr.Error()))
		}
		return DatabaseHandle{}, mapCreateError(err)
	}

	if err := admin.Exec(ctx, fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM public", ident)); err != nil {
		// Both the database and the role exist at this point; unwind them so
		// nothing leaks on the server.
		if dropErr := admin.Exec(ctx, fmt.Sprintf("DROP DATABASE %s", ident)); dropErr != nil {
			o.logger.Warn("failed to drop database after revoke failure",
				slog.String("database", name),
				slog.String("error", dropErr.Error()))
		}
		if rbErr := admin.Exec(ctx, fmt.Sprintf("DROP ROLE %s", ident)); rbErr != nil {
			o.logger.Warn("failed to drop owner role after revoke failure",
				slog.String("role", name),
				slog.String("error", rbErr.Error()))
		}
		return DatabaseHandle{}, fmt.Errorf("%w: revoke public access: %w", ErrCreateFailed, err)
	}

	return DatabaseHandle{
		Name:      name,
		Params:    adminParams.WithDatabaseName(name).WithCredentials(name, password),
		ownedRole: true,
	}, nil
}

// dropTemporaryDatabase tears the database down: terminate any backends
// still connected to it, drop it, and drop the owner role when one was
// created. Every step runs even if an earlier one fails; failures are
// joined under ErrDropFailed.
func dropTemporaryDatabase(ctx context.Context, admin AdminConn, handle DatabaseHandle, o options) error {
	var errs []error

	if err := admin.Exec(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		handle.Name); err != nil {
		errs = append(errs, fmt.Errorf("terminate backends: %w", err))
	}

	ident := pgx.Identifier{handle.Name}.Sanitize()
	if err := admin.Exec(ctx, fmt.Sprintf("DROP DATABASE %s", ident)); err != nil {
		errs = append(errs, fmt.Errorf("drop database: %w", err))
	}

	if handle.ownedRole {
		if err := admin.Exec(ctx, fmt.Sprintf("DROP ROLE %s", ident)); err != nil {
			errs = append(errs, fmt.Errorf("drop owner role: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDropFailed, errors.Join(errs...))
	}

	o.logger.Debug("temporary database dropped", slog.String("database", handle.Name))
	return nil
}
