package ociadapt

import (
	"strings"

	"github.com/DamienR91/ociadapt/oci"
)

// Statement adapts a native prepared-statement handle to a uniform bind,
// execute and fetch API. It owns the handle and every cursor or LOB
// descriptor it allocates while binding; Close releases them all and is
// idempotent.
//
// A Statement is not safe for concurrent use. The native handle underneath
// is a single-caller resource and the adapter follows that model.
type Statement struct {
	conn   oci.Conn
	stmt   oci.Stmt
	text   string
	params *ParamMap
	base   Base
	mode   oci.ExecMode

	// Bound value registry. The native layer binds by location, so the
	// adapter keeps the storage for every bound value alive until the
	// statement is released.
	binds   map[string]any
	lobs    []*oci.Lob
	cursors []*oci.Cursor

	cfg         fetchConfig
	foldCase    bool
	loadLobs    bool
	nullToEmpty bool
	emptyToNull bool
	buffered    bool

	buf       []oci.Row
	bufFilled bool
	bufPos    int

	drained int
	closed  bool
}

// Option configures a Statement at prepare time.
type Option func(*Statement)

// WithBase sets the numbering convention used for synthesized markers and
// positional bind identities. Default is Base0.
func WithBase(b Base) Option {
	return func(s *Statement) { s.base = b }
}

// WithExecMode sets the commit behavior passed to the native execute. The
// owning connection decides this, not individual call sites.
func WithExecMode(m oci.ExecMode) Option {
	return func(s *Statement) { s.mode = m }
}

// WithLowercaseKeys folds all column keys to lowercase in fetched rows.
func WithLowercaseKeys() Option {
	return func(s *Statement) { s.foldCase = true }
}

// WithLobPreload replaces LOB descriptors in fetched rows with their fully
// loaded content.
func WithLobPreload() Option {
	return func(s *Statement) { s.loadLobs = true }
}

// WithNullToEmpty substitutes the empty string for null column values
// during object hydration.
func WithNullToEmpty() Option {
	return func(s *Statement) { s.nullToEmpty = true }
}

// WithEmptyToNull substitutes null for empty string column values during
// object hydration. Independent of WithNullToEmpty; both may apply to
// different fields of the same row.
func WithEmptyToNull() Option {
	return func(s *Statement) { s.emptyToNull = true }
}

// WithBuffered drains the full result set on the first fetch and serves
// rows from memory, for callers that asked for buffered retrieval.
func WithBuffered() Option {
	return func(s *Statement) { s.buffered = true }
}

// WithFetchMode sets the initial fetch mode. Default is FetchBoth.
func WithFetchMode(m FetchMode) Option {
	return func(s *Statement) { s.cfg = fetchConfig{mode: m} }
}

// Prepare rewrites the positional markers of query into named ones,
// prepares the canonical text on conn and returns the adapter for the
// resulting handle.
func Prepare(conn oci.Conn, query string, opts ...Option) (*Statement, error) {
	s := &Statement{
		conn:  conn,
		base:  Base0,
		mode:  oci.ExecCommitOnSuccess,
		cfg:   fetchConfig{mode: FetchBoth},
		binds: make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.cfg.mode.valid() {
		return nil, &UnsupportedError{Op: "prepare", Detail: s.cfg.mode.String()}
	}
	s.text, s.params = Rewrite(query, s.base)
	st, err := conn.Prepare(s.text)
	if err != nil {
		return nil, driverErr("prepare", err)
	}
	s.stmt = st
	return s, nil
}

// Text returns the canonical statement text sent to the native client.
func (s *Statement) Text() string { return s.text }

// Params returns the marker map produced by the rewrite.
func (s *Statement) Params() *ParamMap { return s.params }

// BindOption configures a single scalar bind.
type BindOption func(*bindSpec)

type bindSpec struct {
	maxLen int
}

// WithMaxLen sets an explicit maximum length for the bound value.
func WithMaxLen(n int) BindOption {
	return func(b *bindSpec) { b.maxLen = n }
}

// Bind stores value in the registry and binds it by name to the marker
// resolved for identity: an int positional key is translated through the
// marker map, a string is used as the marker directly. Binding never
// validates against the statement's actual marker count; a mismatch
// surfaces at Exec.
func (s *Statement) Bind(identity, value any, opts ...BindOption) error {
	marker, err := s.marker(identity)
	if err != nil {
		return err
	}
	var spec bindSpec
	for _, opt := range opts {
		opt(&spec)
	}
	s.binds[marker] = value
	if err := s.stmt.BindByName(marker, value, spec.maxLen, oci.BindDefault); err != nil {
		return driverErr("bind", err)
	}
	return nil
}

// BindCursor allocates an output cursor resource and binds it to the
// marker resolved for identity. After Exec the cursor holds a
// sub-statement; FetchAll also expands such cursors in place. The adapter
// owns the cursor and releases it on Close.
func (s *Statement) BindCursor(identity any) (*oci.Cursor, error) {
	marker, err := s.marker(identity)
	if err != nil {
		return nil, err
	}
	cur, err := s.conn.NewCursor()
	if err != nil {
		return nil, driverErr("bind", err)
	}
	if err := s.stmt.BindByName(marker, cur, 0, oci.BindCursor); err != nil {
		return nil, driverErr("bind", err)
	}
	s.binds[marker] = cur
	s.cursors = append(s.cursors, cur)
	return cur, nil
}

// BindLob allocates a temporary LOB descriptor, writes content into it and
// binds the descriptor. kind must be oci.BindClob or oci.BindBlob. The
// adapter owns the descriptor and releases it on Close.
func (s *Statement) BindLob(identity any, kind oci.BindType, content []byte) (*oci.Lob, error) {
	if kind != oci.BindClob && kind != oci.BindBlob {
		return nil, &UnsupportedError{Op: "bind", Detail: "lob bind requires BindClob or BindBlob"}
	}
	marker, err := s.marker(identity)
	if err != nil {
		return nil, err
	}
	lob, err := s.conn.NewTempLob(kind)
	if err != nil {
		return nil, driverErr("bind", err)
	}
	if err := lob.Write(content); err != nil {
		return nil, driverErr("bind", err)
	}
	if err := s.stmt.BindByName(marker, lob, len(content), kind); err != nil {
		return nil, driverErr("bind", err)
	}
	s.binds[marker] = lob
	s.lobs = append(s.lobs, lob)
	return lob, nil
}

func (s *Statement) marker(identity any) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	marker := s.params.Marker(identity)
	if marker == "" {
		return "", &InvalidArgumentError{Op: "bind", Reason: "identity must be an int position or a marker name"}
	}
	return marker, nil
}

// Exec runs the statement with whatever was bound so far. A native failure
// comes back as a *DriverError carrying the client's code and message; it
// is never retried here.
func (s *Statement) Exec() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.stmt.Exec(s.mode); err != nil {
		return driverErr("exec", err)
	}
	s.drained = 0
	s.buf = nil
	s.bufFilled = false
	s.bufPos = 0
	return nil
}

// ExecArgs binds the values of args positionally and executes. Slice
// position i binds to the marker keyed i under Base0, i+1 under Base1 —
// the same shift the marker map was built with, stated here rather than
// guessed from the input.
func (s *Statement) ExecArgs(args []any) error {
	for i, v := range args {
		if err := s.Bind(i+int(s.base), v); err != nil {
			return err
		}
	}
	return s.Exec()
}

// ExecNamed binds the values of args by marker name and executes. Names
// resolve exactly like string identities in Bind.
func (s *Statement) ExecNamed(args map[string]any) error {
	for name, v := range args {
		if err := s.Bind(name, v); err != nil {
			return err
		}
	}
	return s.Exec()
}

// Fetch returns the next row in the active fetch mode. ok is false once
// the result set is exhausted; that is the normal terminal signal, not an
// error.
func (s *Statement) Fetch() (v any, ok bool, err error) {
	return s.fetch(s.cfg)
}

// FetchWith fetches one row in the given mode without changing the active
// configuration. Overriding into the active mode keeps its arguments;
// overriding into FetchClass or FetchInto from another mode fails, since
// those need arguments only SetFetchMode can supply.
func (s *Statement) FetchWith(mode FetchMode) (any, bool, error) {
	if !mode.valid() {
		return nil, false, &UnsupportedError{Op: "fetch", Detail: mode.String()}
	}
	cfg := s.cfg
	if mode != cfg.mode {
		cfg = fetchConfig{mode: mode}
	}
	switch {
	case mode == FetchClass && cfg.ctor == nil:
		return nil, false, &InvalidArgumentError{Op: "fetch", Reason: "class mode requires a constructor set via SetFetchMode"}
	case mode == FetchInto && cfg.into == nil:
		return nil, false, &InvalidArgumentError{Op: "fetch", Reason: "into mode requires a target set via SetFetchMode"}
	}
	return s.fetch(cfg)
}

func (s *Statement) fetch(cfg fetchConfig) (any, bool, error) {
	row, ok, err := s.fetchNative(nativeShapes[cfg.mode])
	if err != nil || !ok {
		return nil, false, err
	}
	row, err = s.prepareRow(row)
	if err != nil {
		return nil, false, err
	}
	v, ok, err := transforms[cfg.mode](s, cfg, row)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

// FetchAll drains the statement in the active mode. A row containing one
// or more output-cursor values is replaced in place by the rows of those
// cursors: each cursor is executed as its own statement, drained in the
// same mode (recursively, so cursor-returning procedures nest), and
// released once consumed.
func (s *Statement) FetchAll() ([]any, error) {
	out := []any{}
	for {
		row, ok, err := s.fetchNative(nativeShapes[s.cfg.mode])
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if curs := cursorValues(row.Values); len(curs) > 0 {
			for _, cur := range curs {
				rows, err := s.drainCursor(cur)
				if err != nil {
					return nil, err
				}
				out = append(out, rows...)
			}
			continue
		}
		row, err = s.prepareRow(row)
		if err != nil {
			return nil, err
		}
		v, ok, err := transforms[s.cfg.mode](s, s.cfg, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// drainCursor executes cur's sub-statement and drains it in this
// statement's mode. The child handle lives only for the drain.
func (s *Statement) drainCursor(cur *oci.Cursor) ([]any, error) {
	defer cur.Close()
	if cur.Stmt() == nil {
		return nil, nil
	}
	child := &Statement{
		conn:        s.conn,
		stmt:        cur.Stmt(),
		params:      newParamMap(),
		base:        s.base,
		mode:        s.mode,
		binds:       make(map[string]any),
		cfg:         s.cfg,
		foldCase:    s.foldCase,
		loadLobs:    s.loadLobs,
		nullToEmpty: s.nullToEmpty,
		emptyToNull: s.emptyToNull,
	}
	defer child.Close()
	if err := child.Exec(); err != nil {
		return nil, err
	}
	return child.FetchAll()
}

func cursorValues(values []any) []*oci.Cursor {
	var out []*oci.Cursor
	for _, v := range values {
		if cur, ok := v.(*oci.Cursor); ok {
			out = append(out, cur)
		}
	}
	return out
}

func (s *Statement) fetchNative(shape oci.RowShape) (oci.Row, bool, error) {
	if s.closed {
		return oci.Row{}, false, ErrClosed
	}
	if s.buffered {
		if !s.bufFilled {
			for {
				row, ok, err := s.stmt.Fetch(oci.ShapeBoth)
				if err != nil {
					return oci.Row{}, false, driverErr("fetch", err)
				}
				if !ok {
					break
				}
				s.buf = append(s.buf, row)
			}
			s.bufFilled = true
		}
		if s.bufPos >= len(s.buf) {
			return oci.Row{}, false, nil
		}
		row := s.buf[s.bufPos]
		s.bufPos++
		s.drained++
		return row, true, nil
	}
	row, ok, err := s.stmt.Fetch(shape)
	if err != nil {
		return oci.Row{}, false, driverErr("fetch", err)
	}
	if !ok {
		return oci.Row{}, false, nil
	}
	s.drained++
	return row, true, nil
}

// prepareRow applies key folding and LOB materialization to a native row.
func (s *Statement) prepareRow(row oci.Row) (oci.Row, error) {
	if s.foldCase && len(row.Names) > 0 {
		folded := make([]string, len(row.Names))
		for i, n := range row.Names {
			folded[i] = strings.ToLower(n)
		}
		row.Names = folded
	}
	if s.loadLobs {
		for i, v := range row.Values {
			lob, ok := v.(*oci.Lob)
			if !ok {
				continue
			}
			content, err := lob.Load()
			if err != nil {
				return oci.Row{}, driverErr("fetch", err)
			}
			if lob.Kind() == oci.BindClob {
				row.Values[i] = string(content)
			} else {
				row.Values[i] = content
			}
		}
	}
	return row, nil
}

// RowCount returns the native row count when the client materialized one,
// otherwise the number of rows drained so far. The latter is an
// approximation, not the true total of an unfinished result set.
func (s *Statement) RowCount() int64 {
	if s.stmt != nil {
		if n, known := s.stmt.RowsAffected(); known {
			return n
		}
	}
	return int64(s.drained)
}

// Close releases the native handle and every cursor and LOB descriptor the
// statement allocated. Safe to call any number of times.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	for _, lob := range s.lobs {
		if cerr := lob.Close(); err == nil {
			err = cerr
		}
	}
	for _, cur := range s.cursors {
		if cerr := cur.Close(); err == nil {
			err = cerr
		}
	}
	if s.stmt != nil {
		if cerr := s.stmt.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
