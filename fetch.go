package ociadapt

import (
	"fmt"
	"reflect"

	"github.com/DamienR91/ociadapt/oci"
)

// FetchMode selects the shape rows come back in. The set is closed; modes
// outside it are rejected by SetFetchMode with an unsupported-operation
// error.
type FetchMode uint8

const (
	// FetchBoth returns a Row addressable by both column name and position.
	FetchBoth FetchMode = iota
	// FetchAssoc returns map[string]any keyed by column name.
	FetchAssoc
	// FetchNumeric returns []any in native column order.
	FetchNumeric
	// FetchColumn returns the value of one configured column.
	FetchColumn
	// FetchObject returns a freshly built map[string]any per row.
	FetchObject
	// FetchClass invokes a configured constructor per row and assigns
	// columns to same-named fields.
	FetchClass
	// FetchInto assigns columns to the fields of one caller-supplied
	// instance, returned again for every row.
	FetchInto
)

// String returns the mode name.
func (m FetchMode) String() string {
	switch m {
	case FetchBoth:
		return "both"
	case FetchAssoc:
		return "assoc"
	case FetchNumeric:
		return "numeric"
	case FetchColumn:
		return "column"
	case FetchObject:
		return "object"
	case FetchClass:
		return "class"
	case FetchInto:
		return "into"
	default:
		return fmt.Sprintf("FetchMode(%d)", uint8(m))
	}
}

func (m FetchMode) valid() bool { return m <= FetchInto }

// nativeShapes maps each mode to the native row shape it drains.
var nativeShapes = map[FetchMode]oci.RowShape{
	FetchBoth:    oci.ShapeBoth,
	FetchAssoc:   oci.ShapeAssoc,
	FetchNumeric: oci.ShapeNumeric,
	FetchColumn:  oci.ShapeNumeric,
	FetchObject:  oci.ShapeAssoc,
	FetchClass:   oci.ShapeAssoc,
	FetchInto:    oci.ShapeAssoc,
}

// Constructor builds one hydration target per row for FetchClass. It is
// called with the constructor arguments configured at SetFetchMode time and
// must return a pointer to a struct, or a map[string]any.
type Constructor func(args ...any) any

// fetchConfig is the per-statement fetch state: exactly one mode, plus the
// fields belonging to that mode. SetFetchMode replaces the whole value, so
// stale fields from a previous mode never leak into the next one.
type fetchConfig struct {
	mode     FetchMode
	column   int         // FetchColumn
	ctor     Constructor // FetchClass
	ctorArgs []any       // FetchClass
	into     any         // FetchInto
}

// SetFetchMode replaces the statement's fetch configuration. Mode-specific
// arguments:
//
//   - FetchColumn: optional int column index, default 0
//   - FetchClass: a Constructor (or func() any), then its arguments
//   - FetchInto: a non-nil pointer to struct, or a map[string]any
//
// The remaining modes take no arguments. The new configuration applies to
// every subsequent fetch until the next SetFetchMode.
func (s *Statement) SetFetchMode(mode FetchMode, args ...any) error {
	if !mode.valid() {
		return &UnsupportedError{Op: "set fetch mode", Detail: mode.String()}
	}
	cfg := fetchConfig{mode: mode}
	switch mode {
	case FetchColumn:
		switch len(args) {
		case 0:
		case 1:
			col, ok := args[0].(int)
			if !ok || col < 0 {
				return &InvalidArgumentError{Op: "set fetch mode", Reason: "column index must be a non-negative int"}
			}
			cfg.column = col
		default:
			return &InvalidArgumentError{Op: "set fetch mode", Reason: "column mode takes at most one argument"}
		}
	case FetchClass:
		if len(args) == 0 {
			return &InvalidArgumentError{Op: "set fetch mode", Reason: "class mode requires a constructor"}
		}
		switch fn := args[0].(type) {
		case Constructor:
			cfg.ctor = fn
		case func(args ...any) any:
			cfg.ctor = fn
		case func() any:
			cfg.ctor = func(...any) any { return fn() }
		default:
			return &InvalidArgumentError{Op: "set fetch mode", Reason: "class mode constructor must be a Constructor or func() any"}
		}
		cfg.ctorArgs = args[1:]
	case FetchInto:
		if len(args) != 1 || args[0] == nil {
			return &InvalidArgumentError{Op: "set fetch mode", Reason: "into mode requires a target instance"}
		}
		if !usableTarget(args[0]) {
			return &InvalidArgumentError{Op: "set fetch mode", Reason: "into mode target must be a non-nil struct pointer or map"}
		}
		cfg.into = args[0]
	default:
		if len(args) != 0 {
			return &InvalidArgumentError{Op: "set fetch mode", Reason: mode.String() + " mode takes no arguments"}
		}
	}
	s.cfg = cfg
	return nil
}

// usableTarget reports whether v can receive column assignments.
func usableTarget(v any) bool {
	if m, ok := v.(map[string]any); ok {
		return m != nil
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
}

// transformFunc turns one native row into the caller's representation for a
// mode. ok=false signals that the row does not yield a value in this mode
// (the single-column index missing from the row).
type transformFunc func(s *Statement, cfg fetchConfig, row oci.Row) (v any, ok bool, err error)

// transforms dispatches each mode tag to its row transform.
var transforms = map[FetchMode]transformFunc{
	FetchBoth:    transformBoth,
	FetchAssoc:   transformAssoc,
	FetchNumeric: transformNumeric,
	FetchColumn:  transformColumn,
	FetchObject:  transformObject,
	FetchClass:   transformClass,
	FetchInto:    transformInto,
}

func transformBoth(s *Statement, _ fetchConfig, row oci.Row) (any, bool, error) {
	return Row{Columns: row.Names, Values: row.Values}, true, nil
}

func transformAssoc(s *Statement, _ fetchConfig, row oci.Row) (any, bool, error) {
	out := make(map[string]any, len(row.Names))
	for i, name := range row.Names {
		out[name] = row.Values[i]
	}
	return out, true, nil
}

func transformNumeric(s *Statement, _ fetchConfig, row oci.Row) (any, bool, error) {
	return row.Values, true, nil
}

func transformColumn(s *Statement, cfg fetchConfig, row oci.Row) (any, bool, error) {
	if cfg.column >= len(row.Values) {
		return nil, false, nil
	}
	return row.Values[cfg.column], true, nil
}

func transformObject(s *Statement, _ fetchConfig, row oci.Row) (any, bool, error) {
	target := make(map[string]any, len(row.Names))
	if err := s.assign(target, row); err != nil {
		return nil, false, err
	}
	return target, true, nil
}

func transformClass(s *Statement, cfg fetchConfig, row oci.Row) (any, bool, error) {
	target := cfg.ctor(cfg.ctorArgs...)
	if target == nil {
		return nil, false, &InvalidArgumentError{Op: "fetch", Reason: "constructor returned nil"}
	}
	if err := s.assign(target, row); err != nil {
		return nil, false, err
	}
	return target, true, nil
}

func transformInto(s *Statement, cfg fetchConfig, row oci.Row) (any, bool, error) {
	if err := s.assign(cfg.into, row); err != nil {
		return nil, false, err
	}
	return cfg.into, true, nil
}

// Row is the both-shapes row returned by FetchBoth: values addressable by
// position and by column name. Columns follow native column order.
type Row struct {
	Columns []string
	Values  []any
}

// Index returns the value at position i, or nil when out of range.
func (r Row) Index(i int) any {
	if i < 0 || i >= len(r.Values) {
		return nil
	}
	return r.Values[i]
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}
