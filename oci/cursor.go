package oci

// Cursor is an output-cursor resource. It is allocated through
// Conn.NewCursor, bound to a marker with BindCursor, and populated by the
// client during execution of the owning statement. Once populated it is
// consumable as a sub-statement.
type Cursor struct {
	stmt   Stmt
	closed bool
}

// Attach installs the sub-statement handle. Conn implementations call this
// when the owning statement executes; callers of the adapter layer do not.
func (c *Cursor) Attach(s Stmt) { c.stmt = s }

// Stmt returns the sub-statement handle, or nil if the cursor was never
// populated by an execution.
func (c *Cursor) Stmt() Stmt { return c.stmt }

// Close releases the cursor and its sub-statement. Idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.stmt != nil {
		return c.stmt.Close()
	}
	return nil
}
