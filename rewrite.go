package ociadapt

import (
	"strconv"
	"strings"
)

// Base selects the numbering convention for synthesized markers and for
// positional bind identities. Both conventions exist in the wild: plain
// argument slices count from zero, bind-by-position client APIs count from
// one. The convention is always an explicit input, never guessed.
type Base int

const (
	// Base0 numbers markers :param0, :param1, … keyed 0, 1, …
	Base0 Base = 0
	// Base1 numbers markers :param1, :param2, … keyed 1, 2, …
	Base1 Base = 1
)

// ParamMap records, in occurrence order, the named marker synthesized for
// each positional parameter of one rewrite. Names are unique within the
// rewrite and never reused.
type ParamMap struct {
	keys  []int
	names map[int]string
}

func newParamMap() *ParamMap {
	return &ParamMap{names: make(map[int]string)}
}

func (m *ParamMap) add(key int, name string) {
	m.keys = append(m.keys, key)
	m.names[key] = name
}

// Len returns the number of recorded markers.
func (m *ParamMap) Len() int { return len(m.keys) }

// Keys returns the positional keys in occurrence order.
func (m *ParamMap) Keys() []int {
	out := make([]int, len(m.keys))
	copy(out, m.keys)
	return out
}

// Name returns the marker synthesized for the positional key.
func (m *ParamMap) Name(key int) (string, bool) {
	name, ok := m.names[key]
	return name, ok
}

// Marker resolves a bind identity to a marker name. Integer identities are
// looked up in the map; string identities pass through unchanged, for
// callers that already use named markers. An integer with no entry also
// passes through (as ":N"); the mismatch surfaces at execution, not here.
func (m *ParamMap) Marker(identity any) string {
	switch k := identity.(type) {
	case int:
		if name, ok := m.names[k]; ok {
			return name
		}
		return ":" + strconv.Itoa(k)
	case string:
		return k
	default:
		return ""
	}
}

// Rewrite scans text once, left to right, and replaces every "?" found
// outside a quoted literal with a synthesized named marker. It returns the
// rewritten text and the occurrence-order map from positional key to marker.
// Text with no positional markers comes back unchanged, so the function is
// idempotent on its own output.
//
// Literal detection is a single toggle on ' and " characters. Escaped
// quotes inside literals and cross-style concatenation are not recognized;
// an unterminated literal leaves the rest of the scan inside it, so any
// trailing markers stay unconverted. Dialect escaping rules vary too much
// to guess here, so this behavior is kept as-is rather than corrected.
func Rewrite(text string, base Base) (string, *ParamMap) {
	params := newParamMap()
	if !strings.ContainsRune(text, '?') {
		return text, params
	}
	var (
		buf     strings.Builder
		literal bool
		n       = int(base)
	)
	buf.Grow(len(text) + strings.Count(text, "?")*8)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '?' && !literal:
			name := ":param" + strconv.Itoa(n)
			buf.WriteString(name)
			params.add(n, name)
			n++
		case c == '\'' || c == '"':
			literal = !literal
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String(), params
}
