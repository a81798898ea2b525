package postgres

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

type fakeTag int64

func (t fakeTag) RowsAffected() int64 { return int64(t) }

type execCall struct {
	sql  string
	args []any
}

// fakeRows replays fixed rows, assigning each value to the matching Scan
// destination.
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.data[r.pos-1], dest)
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeTx struct {
	execs      []execCall
	ExecFunc   func(sql string, args []any) (CommandTag, error)
	row        fakeRow
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) Row { return t.row }

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.ExecFunc != nil {
		return t.ExecFunc(sql, args)
	}
	return fakeTag(1), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	rows      *fakeRows
	queryArgs []any
	tx        *fakeTx
	conn      *fakeConn
}

func (d *fakeDB) Query(_ context.Context, _ string, args ...any) (Rows, error) {
	d.queryArgs = args
	return d.rows, nil
}

func (d *fakeDB) QueryRow(context.Context, string, ...any) Row { return fakeRow{err: errors.New("not implemented")} }

func (d *fakeDB) Exec(context.Context, string, ...any) (CommandTag, error) { return fakeTag(0), nil }

func (d *fakeDB) Begin(context.Context) (Tx, error) { return d.tx, nil }

func (d *fakeDB) Acquire(context.Context) (Conn, error) {
	if d.conn == nil {
		return nil, errors.New("pool closed")
	}
	return d.conn, nil
}

func (d *fakeDB) Close() {}

type fakeConn struct {
	mu            sync.Mutex
	execs         []string
	notifications chan *Notification
	released      bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	c.mu.Lock()
	c.execs = append(c.execs, sql)
	c.mu.Unlock()
	return fakeTag(0), nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n, ok := <-c.notifications:
		if !ok {
			return nil, errors.New("conn closed")
		}
		return n, nil
	}
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
}
