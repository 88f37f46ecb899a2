package ociadapt

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/DamienR91/ociadapt/oci"
)

// assign writes each column of row into the same-named field of target.
// target is a map[string]any or a non-nil pointer to struct. Struct fields
// match a column by `db` tag, exact name, or case-insensitive/camelized
// name, in that order. The null-to-empty and empty-to-null substitutions
// are applied per value before assignment when configured.
func (s *Statement) assign(target any, row oci.Row) error {
	names, values := row.Names, row.Values
	if m, ok := target.(map[string]any); ok {
		for i, name := range names {
			m[name] = s.normalize(values[i])
		}
		return nil
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &InvalidArgumentError{Op: "fetch", Reason: fmt.Sprintf("cannot assign columns to %T", target)}
	}
	elem := rv.Elem()
	for i, name := range names {
		fv, ok := structField(elem, name)
		if !ok {
			continue // columns without a matching field are skipped
		}
		if err := setField(fv, s.normalize(values[i])); err != nil {
			return &InvalidArgumentError{Op: "fetch", Reason: fmt.Sprintf("column %q: %v", name, err)}
		}
	}
	return nil
}

// normalize applies the configured value substitutions. The two rules are
// independent: a null value and an empty string in the same row each get
// their own treatment.
func (s *Statement) normalize(v any) any {
	if v == nil {
		if s.nullToEmpty {
			return ""
		}
		return nil
	}
	if s.emptyToNull {
		if str, ok := v.(string); ok && str == "" {
			return nil
		}
	}
	return v
}

// structField finds the field of elem that receives the named column.
func structField(elem reflect.Value, column string) (reflect.Value, bool) {
	t := elem.Type()
	var loose reflect.Value
	looseFound := false
	camel := inflect.Camelize(strings.ToLower(column))
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("db"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag == column {
				return elem.Field(i), true
			}
			continue // tagged fields match by tag only
		}
		if f.Name == column {
			return elem.Field(i), true
		}
		if !looseFound && (strings.EqualFold(f.Name, column) || f.Name == camel) {
			loose = elem.Field(i)
			looseFound = true
		}
	}
	return loose, looseFound
}

// setField assigns v to fv with the loose conversions a driver's scan layer
// applies: integer and float widths, []byte/string interchange, and nil for
// pointers, maps, slices and interfaces.
func setField(fv reflect.Value, v any) error {
	if !fv.CanSet() {
		return fmt.Errorf("field is not settable")
	}
	if v == nil {
		switch fv.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		case reflect.String:
			fv.SetString("")
			return nil
		default:
			return fmt.Errorf("cannot assign null to %s", fv.Type())
		}
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if fv.Kind() == reflect.Pointer {
		p := reflect.New(fv.Type().Elem())
		if err := setField(p.Elem(), v); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		switch sv := v.(type) {
		case []byte:
			fv.SetString(string(sv))
			return nil
		case string:
			fv.SetString(sv)
			return nil
		}
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			if sv, ok := v.(string); ok {
				fv.SetBytes([]byte(sv))
				return nil
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.CanInt() {
			fv.SetInt(rv.Int())
			return nil
		}
		if rv.CanFloat() {
			fv.SetInt(int64(rv.Float()))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.CanInt() {
			if rv.Int() < 0 {
				return fmt.Errorf("cannot assign negative %T to %s", v, fv.Type())
			}
			fv.SetUint(uint64(rv.Int()))
			return nil
		}
		if rv.CanUint() {
			fv.SetUint(rv.Uint())
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if rv.CanFloat() {
			fv.SetFloat(rv.Float())
			return nil
		}
		if rv.CanInt() {
			fv.SetFloat(float64(rv.Int()))
			return nil
		}
	case reflect.Bool:
		if rv.CanInt() {
			fv.SetBool(rv.Int() != 0)
			return nil
		}
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, fv.Type())
}
