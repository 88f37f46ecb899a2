// Package oci defines the narrow contract the adapter layer needs from an
// Oracle-style native database client: prepare a statement, bind values by
// name, execute with a commit mode, fetch one row at a time in a requested
// shape, and release the handle explicitly.
//
// The package ships two implementations: SQLConn, a bridge over database/sql
// for drivers registered with the standard library, and ocimock.Conn, a
// scriptable in-memory client for tests. A cgo-based client for a real OCI
// library satisfies the same interfaces.
package oci

import "fmt"

// ExecMode selects the commit behavior of Stmt.Exec. It is chosen by the
// owning connection, not per statement.
type ExecMode uint8

const (
	// ExecCommitOnSuccess commits the enclosing transaction when execution
	// succeeds (the client's auto-commit mode).
	ExecCommitOnSuccess ExecMode = iota
	// ExecNoAutoCommit leaves the transaction open; the caller commits or
	// rolls back through the connection.
	ExecNoAutoCommit
)

// RowShape is the representation a native fetch returns a row in.
type RowShape uint8

const (
	// ShapeAssoc returns column-name keyed values.
	ShapeAssoc RowShape = iota
	// ShapeNumeric returns values in column order without names.
	ShapeNumeric
	// ShapeBoth returns values addressable by both name and position.
	ShapeBoth
)

// BindType selects the binding discipline for Stmt.BindByName.
type BindType uint8

const (
	// BindDefault binds a scalar with the client's inferred type.
	BindDefault BindType = iota
	// BindCursor binds an output cursor resource allocated with
	// Conn.NewCursor. After execution the cursor is usable as a
	// sub-statement.
	BindCursor
	// BindClob binds a temporary character LOB descriptor.
	BindClob
	// BindBlob binds a temporary binary LOB descriptor.
	BindBlob
)

// Row is one fetched native row. Names is nil for ShapeNumeric; for
// ShapeAssoc and ShapeBoth it carries the column names in native column
// order, aligned with Values.
type Row struct {
	Names  []string
	Values []any
}

// Conn is a connection to the native client.
type Conn interface {
	// Prepare parses the statement text and returns a handle for it.
	// Parameter markers in the text are named (":name" style).
	Prepare(text string) (Stmt, error)

	// NewCursor allocates a cursor resource for output binding.
	NewCursor() (*Cursor, error)

	// NewTempLob allocates a temporary LOB descriptor. kind must be
	// BindClob or BindBlob.
	NewTempLob(kind BindType) (*Lob, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Stmt is a prepared native statement handle. It is not safe for concurrent
// use; the model is one logical caller per statement.
type Stmt interface {
	// BindByName binds value to the named marker. maxLen <= 0 means no
	// explicit length. Binding does not validate against the statement's
	// marker count; a mismatch surfaces at Exec.
	BindByName(name string, value any, maxLen int, typ BindType) error

	// Exec runs the statement. A failure is reported as *Error carrying
	// the native code and message.
	Exec(mode ExecMode) error

	// Fetch returns the next row in the requested shape. ok is false once
	// the result set is exhausted; that is a terminal signal, not an error.
	Fetch(shape RowShape) (row Row, ok bool, err error)

	// RowsAffected reports the native row count when the client tracks
	// one (DML statements). known is false for result sets without a
	// materialized count.
	RowsAffected() (n int64, known bool)

	// Close frees the native handle. Idempotent: closing an already
	// closed or never allocated handle is a no-op.
	Close() error
}

// Error is the native client's error descriptor.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("oci: ORA-%05d: %s", e.Code, e.Message)
	}
	return "oci: " + e.Message
}
