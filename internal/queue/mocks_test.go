package queue

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MockDB satisfies the DB interface. Store tests configure only the func
// they expect to see; an unconfigured call is a test bug and panics.
type MockDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTxFunc  func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc == nil {
		panic("unexpected Exec: " + sql)
	}
	return m.ExecFunc(ctx, sql, args...)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFunc == nil {
		panic("unexpected Query: " + sql)
	}
	return m.QueryFunc(ctx, sql, args...)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc == nil {
		panic("unexpected QueryRow: " + sql)
	}
	return m.QueryRowFunc(ctx, sql, args...)
}

func (m *MockDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if m.BeginTxFunc == nil {
		panic("unexpected BeginTx")
	}
	return m.BeginTxFunc(ctx, txOptions)
}

// MockRow carries a canned Scan result.
type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	return m.ScanFunc(dest...)
}

// scanBytes copies a serialized aggregate into a Scan destination.
func scanBytes(data []byte) func(dest ...any) error {
	return func(dest ...any) error {
		if len(dest) != 1 {
			return errors.New("column count mismatch")
		}
		d, ok := dest[0].(*[]byte)
		if !ok {
			return errors.New("expected *[]byte destination")
		}
		*d = data
		return nil
	}
}

// MockTx covers the slice of pgx.Tx the store touches: one locking read,
// one write, commit or rollback. The embedded interface panics on anything
// else. Commit and Rollback default to no-ops because the deferred rollback
// runs even on paths a test does not care about.
type MockTx struct {
	pgx.Tx

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (m *MockTx) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

func (m *MockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc == nil {
		panic("unexpected tx Exec: " + sql)
	}
	return m.ExecFunc(ctx, sql, args...)
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc == nil {
		panic("unexpected tx QueryRow: " + sql)
	}
	return m.QueryRowFunc(ctx, sql, args...)
}

// MockRows serves passcode list queries.
type MockRows struct {
	pgx.Rows
	Passcodes []string
	Idx       int
}

func (m *MockRows) Next() bool {
	if m.Idx >= len(m.Passcodes) {
		return false
	}
	m.Idx++
	return true
}

func (m *MockRows) Scan(dest ...any) error {
	if len(dest) != 1 {
		return errors.New("column count mismatch")
	}
	d, ok := dest[0].(*string)
	if !ok {
		return errors.New("expected *string destination")
	}
	*d = m.Passcodes[m.Idx-1]
	return nil
}

func (m *MockRows) Close()     {}
func (m *MockRows) Err() error { return nil }
