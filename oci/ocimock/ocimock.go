// Package ocimock is a scriptable in-memory implementation of the oci
// contract for tests. Result sets, affected-row counts, native errors and
// output cursors are scripted per statement text, and every handle records
// the binds and releases it receives so tests can assert on them.
package ocimock

import (
	"fmt"

	"github.com/DamienR91/ociadapt/oci"
)

// Conn is a mock native connection.
type Conn struct {
	scripts  map[string]*Script
	Prepared []string // statement texts in prepare order
	closed   bool
}

// New returns an empty mock connection. Preparing a text that has no script
// fails, mirroring a parse error from a real client.
func New() *Conn {
	return &Conn{scripts: make(map[string]*Script)}
}

// Script registers canned behavior for one statement text and returns it
// for fluent configuration.
func (c *Conn) Script(text string) *Script {
	s := &Script{text: text}
	c.scripts[text] = s
	return s
}

// ScriptFor returns the script registered for text, or nil.
func (c *Conn) ScriptFor(text string) *Script { return c.scripts[text] }

// Prepare implements oci.Conn.
func (c *Conn) Prepare(text string) (oci.Stmt, error) {
	if c.closed {
		return nil, &oci.Error{Message: "prepare on closed connection"}
	}
	c.Prepared = append(c.Prepared, text)
	s, ok := c.scripts[text]
	if !ok {
		return nil, &oci.Error{Code: 900, Message: fmt.Sprintf("invalid SQL statement: %q", text)}
	}
	st := &Stmt{conn: c, script: s}
	s.stmts = append(s.stmts, st)
	return st, nil
}

// NewCursor implements oci.Conn.
func (c *Conn) NewCursor() (*oci.Cursor, error) { return &oci.Cursor{}, nil }

// NewTempLob implements oci.Conn.
func (c *Conn) NewTempLob(kind oci.BindType) (*oci.Lob, error) {
	return oci.NewLob(kind, nil), nil
}

// Close implements oci.Conn.
func (c *Conn) Close() error {
	c.closed = true
	return nil
}

// Script is the canned behavior for one statement text.
type Script struct {
	text     string
	columns  []string
	rows     [][]any
	affected int64
	known    bool
	execErr  *oci.Error
	cursors  map[string]string // marker name -> sub-statement text
	stmts    []*Stmt
}

// Columns sets the result column names, in native column order.
func (s *Script) Columns(names ...string) *Script {
	s.columns = names
	return s
}

// AddRow appends one result row. Values may include *oci.Lob descriptors
// and cursor references created with CursorRef.
func (s *Script) AddRow(values ...any) *Script {
	s.rows = append(s.rows, values)
	return s
}

// Affected sets the native row count reported after execution.
func (s *Script) Affected(n int64) *Script {
	s.affected, s.known = n, true
	return s
}

// FailExec makes execution fail with the given native descriptor.
func (s *Script) FailExec(code int, message string) *Script {
	s.execErr = &oci.Error{Code: code, Message: message}
	return s
}

// OutCursor declares that executing the statement populates the cursor
// bound to the named marker with a sub-statement for subText. subText must
// have its own script on the connection.
func (s *Script) OutCursor(marker, subText string) *Script {
	if s.cursors == nil {
		s.cursors = make(map[string]string)
	}
	s.cursors[marker] = subText
	return s
}

// Stmts returns every handle prepared from this script, in order.
func (s *Script) Stmts() []*Stmt { return s.stmts }

// cursorRef marks a row cell that materializes as an output cursor on fetch.
type cursorRef struct{ text string }

// CursorRef returns a row cell that arrives at the caller as a *oci.Cursor
// whose sub-statement runs the script registered for text.
func CursorRef(text string) any { return cursorRef{text: text} }

// Bound is one recorded bind call.
type Bound struct {
	Value  any
	MaxLen int
	Type   oci.BindType
}

// Stmt is a mock statement handle.
type Stmt struct {
	conn   *Conn
	script *Script

	Binds      map[string]Bound // by marker name, last bind wins
	BindOrder  []string
	Executed   int
	CloseCalls int

	next   int
	closed bool
}

// BindByName implements oci.Stmt.
func (s *Stmt) BindByName(name string, value any, maxLen int, typ oci.BindType) error {
	if s.closed {
		return &oci.Error{Message: "bind on freed statement"}
	}
	if s.Binds == nil {
		s.Binds = make(map[string]Bound)
	}
	if _, seen := s.Binds[name]; !seen {
		s.BindOrder = append(s.BindOrder, name)
	}
	s.Binds[name] = Bound{Value: value, MaxLen: maxLen, Type: typ}
	return nil
}

// Exec implements oci.Stmt. Output cursors declared on the script are
// attached to the bound cursor resources here.
func (s *Stmt) Exec(mode oci.ExecMode) error {
	if s.closed {
		return &oci.Error{Message: "exec on freed statement"}
	}
	if s.script.execErr != nil {
		return s.script.execErr
	}
	s.Executed++
	s.next = 0
	for marker, subText := range s.script.cursors {
		b, ok := s.Binds[marker]
		if !ok {
			return &oci.Error{Code: 1008, Message: "not all variables bound"}
		}
		cur, ok := b.Value.(*oci.Cursor)
		if !ok {
			return &oci.Error{Message: fmt.Sprintf("marker %q is not a cursor bind", marker)}
		}
		sub, err := s.conn.Prepare(subText)
		if err != nil {
			return err
		}
		cur.Attach(sub)
	}
	return nil
}

// Fetch implements oci.Stmt.
func (s *Stmt) Fetch(shape oci.RowShape) (oci.Row, bool, error) {
	if s.closed {
		return oci.Row{}, false, &oci.Error{Message: "fetch on freed statement"}
	}
	if s.next >= len(s.script.rows) {
		return oci.Row{}, false, nil
	}
	src := s.script.rows[s.next]
	s.next++
	vals := make([]any, len(src))
	for i, v := range src {
		if ref, ok := v.(cursorRef); ok {
			cur := &oci.Cursor{}
			sub, err := s.conn.Prepare(ref.text)
			if err != nil {
				return oci.Row{}, false, err
			}
			cur.Attach(sub)
			vals[i] = cur
			continue
		}
		vals[i] = v
	}
	row := oci.Row{Values: vals}
	if shape != oci.ShapeNumeric {
		row.Names = s.script.columns
	}
	return row, true, nil
}

// RowsAffected implements oci.Stmt.
func (s *Stmt) RowsAffected() (int64, bool) { return s.script.affected, s.known() }

func (s *Stmt) known() bool { return s.script.known }

// Close implements oci.Stmt. Every call is counted, but only the first has
// any effect.
func (s *Stmt) Close() error {
	s.CloseCalls++
	s.closed = true
	return nil
}

var _ oci.Conn = (*Conn)(nil)
var _ oci.Stmt = (*Stmt)(nil)
