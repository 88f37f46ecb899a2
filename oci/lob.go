package oci

import "errors"

// Lob is a temporary large-object descriptor. The adapter writes the bound
// value into it before execution and loads the content back out of fetched
// rows when LOB materialization is enabled.
//
// An in-process descriptor is intentionally simple: a kind tag and a byte
// buffer. A cgo-backed client would hold an OCILobLocator here instead; the
// surface below is the part the adapter layer relies on.
type Lob struct {
	kind   BindType
	buf    []byte
	closed bool
}

// NewLob returns a standalone descriptor of the given kind. Conn
// implementations use this to materialize LOB columns in fetched rows.
func NewLob(kind BindType, content []byte) *Lob {
	return &Lob{kind: kind, buf: content}
}

// Kind reports whether the descriptor is a character or binary LOB.
func (l *Lob) Kind() BindType { return l.kind }

// Write replaces the descriptor's content.
func (l *Lob) Write(p []byte) error {
	if l.closed {
		return errors.New("oci: write on freed lob")
	}
	l.buf = append(l.buf[:0], p...)
	return nil
}

// WriteString is Write for string content, the common case for CLOBs.
func (l *Lob) WriteString(s string) error { return l.Write([]byte(s)) }

// Load returns the full content of the LOB. For a character LOB the caller
// typically converts the result to string.
func (l *Lob) Load() ([]byte, error) {
	if l.closed {
		return nil, errors.New("oci: load on freed lob")
	}
	out := make([]byte, len(l.buf))
	copy(out, l.buf)
	return out, nil
}

// Close frees the temporary descriptor. Idempotent.
func (l *Lob) Close() error {
	l.closed = true
	l.buf = nil
	return nil
}
