package pgephemeral

import (
	"context"
	"errors"
)

// Fakes for the two external boundaries, so lifecycle logic is testable
// without a docker daemon or a postgres server.

type fakeEngine struct {
	handle   ServerHandle
	startErr error
	stopErr  error

	started int
	stopped []string
}

func (e *fakeEngine) Start(ctx context.Context, image string) (ServerHandle, error) {
	e.started++
	if e.startErr != nil {
		return ServerHandle{}, e.startErr
	}
	return e.handle, nil
}

func (e *fakeEngine) StopAndRemove(ctx context.Context, id string) error {
	e.stopped = append(e.stopped, id)
	return e.stopErr
}

type fakeAdminConn struct {
	stmts []string
	args  [][]any

	// execErr, when set, decides per statement whether Exec fails.
	execErr  func(stmt string) error
	closeErr error
	closed   int
}

func (c *fakeAdminConn) Exec(ctx context.Context, stmt string, args ...any) error {
	c.stmts = append(c.stmts, stmt)
	c.args = append(c.args, args)
	if c.execErr != nil {
		return c.execErr(stmt)
	}
	return nil
}

func (c *fakeAdminConn) Ping(ctx context.Context) error { return nil }

func (c *fakeAdminConn) Close() error {
	c.closed++
	return c.closeErr
}

type fakeConnector struct {
	conn *fakeAdminConn

	// connectErr, when set, makes every Connect fail.
	connectErr error
	// failuresBeforeSuccess makes the first n Connect calls fail, to
	// exercise readiness polling.
	failuresBeforeSuccess int

	attempts   int
	lastParams ConnParams
}

func (f *fakeConnector) Connect(ctx context.Context, params ConnParams) (AdminConn, error) {
	f.attempts++
	f.lastParams = params
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	if f.attempts <= f.failuresBeforeSuccess {
		return nil, errors.New("connection refused")
	}
	if f.conn == nil {
		f.conn = &fakeAdminConn{}
	}
	return f.conn, nil
}
