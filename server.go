package pgephemeral

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/pgephemeral/internal/docker"
)

// ServerHandle identifies a running ephemeral server instance and where to
// reach it. It is owned by WithServer for the duration of the callback; the
// underlying container is stopped and removed before WithServer returns.
type ServerHandle struct {
	ID   string
	Host string
	Port int
}

// Engine is the container runtime capability WithServer depends on: start a
// server container from an image identifier with an ephemeral host-assigned
// port, and later stop and remove it by ID. No other runtime surface is
// used.
type Engine interface {
	Start(ctx context.Context, image string) (ServerHandle, error)
	StopAndRemove(ctx context.Context, id string) error
}

// dockerEngine adapts the dockertest-backed runtime to the Engine boundary.
type dockerEngine struct {
	engine *docker.Engine
}

func (d dockerEngine) Start(ctx context.Context, image string) (ServerHandle, error) {
	c, err := d.engine.Start(image)
	if err != nil {
		return ServerHandle{}, err
	}
	return ServerHandle{ID: c.ID, Host: c.Host, Port: c.Port}, nil
}

func (d dockerEngine) StopAndRemove(ctx context.Context, id string) error {
	return d.engine.StopAndRemove(id)
}

// WithServer provisions an ephemeral postgres server from the given image
// (for example "postgres:16-alpine", or a bare tag like "16-alpine"), waits
// until it accepts connections, invokes fn with administrative connection
// parameters pointing at the bootstrap database, and unconditionally stops
// and removes the container afterwards.
//
// The primary outcome and the teardown outcome are reported in separate
// Result slots. Setup failures (ErrProvisionFailed, ErrNotReady) abort
// before fn is invoked; a partially started container is still cleaned up.
func WithServer[T any](image string, fn Callback[T], opts ...Option) (result Result[T]) {
	o := resolveOptions(opts)
	ctx := context.Background()

	engine := o.engine
	if engine == nil {
		de, err := docker.NewEngine(o.logger)
		if err != nil {
			result.Err = fmt.Errorf("%w: %w", ErrProvisionFailed, err)
			return result
		}
		engine = dockerEngine{engine: de}
	}

	handle, err := engine.Start(ctx, image)
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrProvisionFailed, err)
		return result
	}

	o.logger.Debug("server container started",
		slog.String("container_id", handle.ID),
		slog.String("image", image),
		slog.String("addr", fmt.Sprintf("%s:%d", handle.Host, handle.Port)))

	// Deferred so teardown also runs when the callback unwinds the stack
	// in a way recover cannot intercept, such as t.Fatal in a test body.
	defer func() {
		if err := engine.StopAndRemove(ctx, handle.ID); err != nil {
			result.TeardownErr = fmt.Errorf("%w: %w", ErrTeardownFailed, err)
			o.logger.Warn("failed to stop and remove server container",
				slog.String("container_id", handle.ID),
				slog.String("error", err.Error()))
			return
		}
		o.logger.Debug("server container removed", slog.String("container_id", handle.ID))
	}()

	params := ConnParams{
		Host:     handle.Host,
		Port:     handle.Port,
		User:     o.adminUser,
		Password: o.adminPassword,
		Database: o.bootstrapDB,
		TLS:      TLSDisable,
	}

	if err := WaitUntilReady(connectProbe(o.connector, params), o.readyTimeout, o.pollInterval); err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrNotReady, err)
		return result
	}

	o.logger.Debug("server ready", slog.String("url", params.Redacted()))
	result.Value, result.Err = invoke(fn, params)
	return result
}

// probeConnectTimeout bounds a single readiness probe attempt so one hung
// connection cannot consume the whole readiness budget.
const probeConnectTimeout = 5 * time.Second

// connectProbe builds a readiness probe that opens, pings, and closes a
// connection. Transient refusals while the server is still initializing
// look the same as any other failure; the poller only cares about success.
func connectProbe(connector Connector, params ConnParams) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), probeConnectTimeout)
		defer cancel()

		conn, err := connector.Connect(ctx, params)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
