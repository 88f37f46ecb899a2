package oci

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLConn bridges the native contract onto database/sql, so the adapter
// layer runs against any registered driver. Named markers are forwarded as
// sql.Named arguments; the driver must support named parameters (modernc
// sqlite does, most Oracle drivers do).
//
// Output-cursor binds are not representable through database/sql and return
// an error; temporary LOBs are emulated as in-process descriptors whose
// content is bound as a plain string or byte slice.
type SQLConn struct {
	db     *sql.DB
	tx     *sql.Tx
	closed bool
}

// Open opens a database/sql handle for the named driver and wraps it.
func Open(driverName, dsn string) (*SQLConn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLConn{db: db}, nil
}

// OpenDB wraps an existing handle. The caller keeps ownership of db only
// until Close is called on the returned connection.
func OpenDB(db *sql.DB) *SQLConn {
	return &SQLConn{db: db}
}

// Prepare implements Conn.
func (c *SQLConn) Prepare(text string) (Stmt, error) {
	if c.closed {
		return nil, &Error{Message: "prepare on closed connection"}
	}
	st, err := c.db.Prepare(text)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	return &sqlStmt{conn: c, text: text, stmt: st}, nil
}

// NewCursor implements Conn. database/sql has no out-cursor resource, but
// allocation itself succeeds; binding the cursor is what fails.
func (c *SQLConn) NewCursor() (*Cursor, error) {
	return &Cursor{}, nil
}

// NewTempLob implements Conn.
func (c *SQLConn) NewTempLob(kind BindType) (*Lob, error) {
	if kind != BindClob && kind != BindBlob {
		return nil, &Error{Message: fmt.Sprintf("temp lob kind %d not supported", kind)}
	}
	return NewLob(kind, nil), nil
}

// Commit commits the transaction started by an ExecNoAutoCommit execution.
// Without a pending transaction it is a no-op.
func (c *SQLConn) Commit() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit()
}

// Rollback discards the pending transaction, if any.
func (c *SQLConn) Rollback() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Rollback()
}

// Close implements Conn. Idempotent; a pending transaction is rolled back.
func (c *SQLConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.Rollback()
	if cerr := c.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *SQLConn) execer(ctx context.Context, mode ExecMode) (interface {
	StmtContext(context.Context, *sql.Stmt) *sql.Stmt
}, error) {
	if mode == ExecCommitOnSuccess {
		return nil, nil
	}
	if c.tx == nil {
		tx, err := c.db.Begin()
		if err != nil {
			return nil, wrapSQLError(err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

// sqlStmt adapts *sql.Stmt to the Stmt contract.
type sqlStmt struct {
	conn   *SQLConn
	text   string
	stmt   *sql.Stmt
	binds  []sql.NamedArg
	rows   *sql.Rows
	cols   []string
	affect int64
	known  bool
	closed bool
}

// BindByName implements Stmt.
func (s *sqlStmt) BindByName(name string, value any, maxLen int, typ BindType) error {
	if s.closed {
		return &Error{Message: "bind on closed statement"}
	}
	name = strings.TrimPrefix(name, ":")
	switch typ {
	case BindDefault:
		// maxLen is advisory only; database/sql sizes values itself.
	case BindCursor:
		return &Error{Message: fmt.Sprintf("cursor bind %q not supported over database/sql", name)}
	case BindClob, BindBlob:
		lob, ok := value.(*Lob)
		if !ok {
			return &Error{Message: fmt.Sprintf("lob bind %q requires a *oci.Lob value", name)}
		}
		content, err := lob.Load()
		if err != nil {
			return wrapSQLError(err)
		}
		if typ == BindClob {
			value = string(content)
		} else {
			value = content
		}
	default:
		return &Error{Message: fmt.Sprintf("unknown bind type %d", typ)}
	}
	for i := range s.binds {
		if s.binds[i].Name == name {
			s.binds[i].Value = value
			return nil
		}
	}
	s.binds = append(s.binds, sql.Named(name, value))
	return nil
}

// Exec implements Stmt. Statements that produce rows run through Query;
// everything else through Exec so the driver reports an affected-row count.
func (s *sqlStmt) Exec(mode ExecMode) error {
	if s.closed {
		return &Error{Message: "exec on closed statement"}
	}
	ctx := context.Background()
	tx, err := s.conn.execer(ctx, mode)
	if err != nil {
		return err
	}
	st := s.stmt
	if tx != nil {
		st = tx.StmtContext(ctx, s.stmt)
	}
	args := make([]any, len(s.binds))
	for i, b := range s.binds {
		args[i] = b
	}
	if returnsRows(s.text) {
		rows, err := st.QueryContext(ctx, args...)
		if err != nil {
			return wrapSQLError(err)
		}
		if s.rows != nil {
			s.rows.Close()
		}
		s.rows = rows
		s.cols, err = rows.Columns()
		if err != nil {
			rows.Close()
			s.rows = nil
			return wrapSQLError(err)
		}
		s.known = false
		return nil
	}
	res, err := st.ExecContext(ctx, args...)
	if err != nil {
		return wrapSQLError(err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.affect, s.known = n, true
	}
	return nil
}

// Fetch implements Stmt.
func (s *sqlStmt) Fetch(shape RowShape) (Row, bool, error) {
	if s.rows == nil {
		return Row{}, false, nil
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Row{}, false, wrapSQLError(err)
		}
		return Row{}, false, nil
	}
	vals := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return Row{}, false, wrapSQLError(err)
	}
	row := Row{Values: vals}
	if shape != ShapeNumeric {
		row.Names = s.cols
	}
	return row, true, nil
}

// RowsAffected implements Stmt.
func (s *sqlStmt) RowsAffected() (int64, bool) { return s.affect, s.known }

// Close implements Stmt. Idempotent.
func (s *sqlStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.rows != nil {
		err = s.rows.Close()
		s.rows = nil
	}
	if cerr := s.stmt.Close(); err == nil {
		err = cerr
	}
	return err
}

// returnsRows reports whether the statement text starts a row-producing
// statement. The check is a keyword sniff, the same heuristic generic SQL
// frontends use when the driver cannot be asked.
func returnsRows(text string) bool {
	text = strings.TrimSpace(text)
	for _, kw := range []string{"SELECT", "WITH", "SHOW", "VALUES", "PRAGMA", "EXPLAIN"} {
		if len(text) >= len(kw) && strings.EqualFold(text[:len(kw)], kw) {
			return true
		}
	}
	return false
}

func wrapSQLError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Message: err.Error()}
}

var _ Conn = (*SQLConn)(nil)
var _ Stmt = (*sqlStmt)(nil)
