package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
)

var fakeDriverCounter atomic.Int64

// fakeState scripts the fake driver and records what it was asked to do.
type fakeState struct {
	mu       sync.Mutex
	execErr  error
	queryErr error
	cols     []string
	rows     [][]driver.Value
	execs    []string
	args     [][]driver.NamedValue
}

type fakeDriver struct{ st *fakeState }

type fakeConn struct{ st *fakeState }

type fakeRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (d fakeDriver) Open(string) (driver.Conn, error) { return fakeConn(d), nil }

func (c fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c fakeConn) Close() error                        { return nil }
func (c fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (c fakeConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.st.execErr != nil {
		return nil, c.st.execErr
	}
	c.st.execs = append(c.st.execs, query)
	c.st.args = append(c.st.args, args)
	return driver.RowsAffected(1), nil
}

func (c fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.st.queryErr != nil {
		return nil, c.st.queryErr
	}
	return &fakeRows{cols: c.st.cols, data: c.st.rows}, nil
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func openFakeDB(t *testing.T, st *fakeState) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("docx2pdf_fakedrv_%d", fakeDriverCounter.Add(1))
	sql.Register(name, fakeDriver{st: st})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
