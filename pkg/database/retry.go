package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

// SQLite rejects statements with SQLITE_BUSY while another connection holds
// the write lock. The scan worker and the refresh orchestrator share one
// database file, so short lock windows are routine; the connector below
// retries them with backoff instead of surfacing them to callers.

const (
	lockRetryBaseDelay = 50 * time.Millisecond
	lockRetryMaxDelay  = 2 * time.Second
)

// Matches the lock errors reported by both mattn/go-sqlite3 and
// modernc.org/sqlite, which format result codes differently.
var lockErrorPatterns = []string{
	"database is locked",
	"database table is locked",
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"(5)", // SQLITE_BUSY result code
	"(6)", // SQLITE_LOCKED result code
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range lockErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// withLockRetry runs fn up to retries+1 times, backing off exponentially with
// jitter between attempts. Only lock errors are retried; anything else is
// returned as-is from the first attempt.
func withLockRetry(ctx context.Context, retries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isLockError(err) || attempt == retries {
			return err
		}

		delay := lockRetryBaseDelay * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
		if delay > lockRetryMaxDelay {
			delay = lockRetryMaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// dsnConnector adapts a bare driver.Driver to driver.Connector for drivers
// that don't implement OpenConnector, like modernc sqlite on cgo-less builds.
type dsnConnector struct {
	driver driver.Driver
	dsn    string
}

func newDSNConnector(drv driver.Driver, dsn string) *dsnConnector {
	return &dsnConnector{driver: drv, dsn: dsn}
}

func (c *dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.driver
}

// lockRetryConnector wraps a driver.Connector so that every connection it
// hands out retries lock errors.
type lockRetryConnector struct {
	connector driver.Connector
	retries   int
}

func newLockRetryConnector(connector driver.Connector, retries int) *lockRetryConnector {
	return &lockRetryConnector{connector: connector, retries: retries}
}

func (c *lockRetryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &lockRetryConn{conn: conn, retries: c.retries}, nil
}

func (c *lockRetryConnector) Driver() driver.Driver {
	return c.connector.Driver()
}

type lockRetryConn struct {
	conn    driver.Conn
	retries int
}

func (c *lockRetryConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &lockRetryStmt{stmt: stmt, retries: c.retries}, nil
}

func (c *lockRetryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	pc, ok := c.conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	stmt, err := pc.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &lockRetryStmt{stmt: stmt, retries: c.retries}, nil
}

func (c *lockRetryConn) Close() error {
	return c.conn.Close()
}

func (c *lockRetryConn) Begin() (driver.Tx, error) {
	var tx driver.Tx
	err := withLockRetry(context.Background(), c.retries, func() error {
		var beginErr error
		tx, beginErr = c.conn.Begin() //nolint:staticcheck // deprecated but part of driver.Conn
		return beginErr
	})
	return tx, err
}

func (c *lockRetryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	bt, ok := c.conn.(driver.ConnBeginTx)
	if !ok {
		return c.Begin()
	}
	var tx driver.Tx
	err := withLockRetry(ctx, c.retries, func() error {
		var beginErr error
		tx, beginErr = bt.BeginTx(ctx, opts)
		return beginErr
	})
	return tx, err
}

func (c *lockRetryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := withLockRetry(ctx, c.retries, func() error {
		var execErr error
		result, execErr = ec.ExecContext(ctx, query, args)
		return execErr
	})
	return result, err
}

func (c *lockRetryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := withLockRetry(ctx, c.retries, func() error {
		var queryErr error
		rows, queryErr = qc.QueryContext(ctx, query, args)
		return queryErr
	})
	return rows, err
}

func (c *lockRetryConn) Ping(ctx context.Context) error {
	if pinger, ok := c.conn.(driver.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *lockRetryConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

func (c *lockRetryConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}

type lockRetryStmt struct {
	stmt    driver.Stmt
	retries int
}

func (s *lockRetryStmt) Close() error {
	return s.stmt.Close()
}

func (s *lockRetryStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *lockRetryStmt) Exec(args []driver.Value) (driver.Result, error) {
	var result driver.Result
	err := withLockRetry(context.Background(), s.retries, func() error {
		var execErr error
		result, execErr = s.stmt.Exec(args) //nolint:staticcheck // deprecated but part of driver.Stmt
		return execErr
	})
	return result, err
}

func (s *lockRetryStmt) Query(args []driver.Value) (driver.Rows, error) {
	var rows driver.Rows
	err := withLockRetry(context.Background(), s.retries, func() error {
		var queryErr error
		rows, queryErr = s.stmt.Query(args) //nolint:staticcheck // deprecated but part of driver.Stmt
		return queryErr
	})
	return rows, err
}

func (s *lockRetryStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := s.stmt.(driver.StmtExecContext)
	if !ok {
		return s.Exec(namedToValues(args))
	}
	var result driver.Result
	err := withLockRetry(ctx, s.retries, func() error {
		var execErr error
		result, execErr = ec.ExecContext(ctx, args)
		return execErr
	})
	return result, err
}

func (s *lockRetryStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := s.stmt.(driver.StmtQueryContext)
	if !ok {
		return s.Query(namedToValues(args))
	}
	var rows driver.Rows
	err := withLockRetry(ctx, s.retries, func() error {
		var queryErr error
		rows, queryErr = qc.QueryContext(ctx, args)
		return queryErr
	})
	return rows, err
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}
	return values
}
