package pgephemeral

import (
	"fmt"
	"log/slog"
	"time"
)

// Bootstrap identity for freshly provisioned containers. The container is
// started with POSTGRES_HOST_AUTH_METHOD=trust, so the superuser needs no
// password.
const (
	defaultAdminUser         = "postgres"
	defaultBootstrapDatabase = "postgres"
)

// Callback is caller-supplied test logic invoked with connection parameters
// to a live resource. The resource exists for the full duration of the call
// and is torn down after it returns, fails, or panics.
type Callback[T any] func(params ConnParams) (T, error)

// Option adjusts scope behavior. Options that do not apply to the scope
// they are passed to are ignored.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	connector     Connector
	engine        Engine
	readyTimeout  time.Duration
	pollInterval  time.Duration
	namePrefix    string
	ownerRole     bool
	adminUser     string
	adminPassword string
	bootstrapDB   string
}

func resolveOptions(opts []Option) options {
	o := options{
		connector:    PgxConnector{},
		readyTimeout: DefaultReadyTimeout,
		pollInterval: DefaultPollInterval,
		namePrefix:   DefaultNamePrefix,
		adminUser:    defaultAdminUser,
		bootstrapDB:  defaultBootstrapDatabase,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLogger routes scope lifecycle logging to the given logger instead of
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnector substitutes the database client used for readiness probes
// and administrative statements. Primarily for tests.
func WithConnector(c Connector) Option {
	return func(o *options) {
		o.connector = c
	}
}

// WithEngine substitutes the container runtime used to provision servers.
// Primarily for tests.
func WithEngine(e Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithReadyTimeout bounds how long WithServer waits for a new server to
// accept connections.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readyTimeout = d
	}
}

// WithPollInterval sets the delay between readiness probe attempts.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithNamePrefix overrides the prefix used for generated database names.
func WithNamePrefix(prefix string) Option {
	return func(o *options) {
		o.namePrefix = prefix
	}
}

// WithOwnerRole makes WithDatabase create a dedicated login role owning the
// temporary database, with a generated password and public access revoked.
// The callback's parameters then authenticate as that role rather than as
// the administrative user. Methodology from the postgres shared-hosting
// wiki: http://wiki.postgresql.org/wiki/Shared_Database_Hosting
func WithOwnerRole() Option {
	return func(o *options) {
		o.ownerRole = true
	}
}

// WithAdminIdentity overrides the administrative credentials and bootstrap
// database WithServer hands to its callback. Useful for images configured
// with a non-default superuser.
func WithAdminIdentity(user, password, database string) Option {
	return func(o *options) {
		o.adminUser = user
		o.adminPassword = password
		o.bootstrapDB = database
	}
}

// invoke runs the callback, converting returned errors and panics into
// ErrCallbackFailed so teardown always gets a chance to run. The caller's
// original error stays reachable through errors.Is/errors.As.
func invoke[T any](fn Callback[T], params ConnParams) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCallbackFailed, r)
		}
	}()

	val, cbErr := fn(params)
	if cbErr != nil {
		return val, fmt.Errorf("%w: %w", ErrCallbackFailed, cbErr)
	}
	return val, nil
}
