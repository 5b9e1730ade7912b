package sqlmap

import (
	"database/sql"
	"reflect"
	"strings"
	"sync"
)

// Fields supplies values for #{name} placeholders. Field reports the current
// value of the named field and whether the field exists.
type Fields interface {
	Field(name string) (any, bool)
}

// FieldsFunc adapts a plain function to Fields.
type FieldsFunc func(name string) (any, bool)

func (f FieldsFunc) Field(name string) (any, bool) { return f(name) }

// Map is a Fields backed by a map. A present key holding nil binds NULL.
type Map map[string]any

func (m Map) Field(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// ambiguousSentinel is used to bubble up an "ambiguous field" condition
// through Field without changing call signatures.
type ambiguousSentinel struct {
	name string
}

var (
	structFieldsByType sync.Map // reflect.Type -> map[string]fieldInfo
	scannerIface       = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// fieldInfo locates one visible field of a struct type.
type fieldInfo struct {
	index     []int
	depth     int  // embedding depth, 0 for the struct's own fields
	ambiguous bool // two fields share the name at the shallowest depth
}

// structFields is the reflective Fields adapter returned by Struct.
type structFields struct {
	v      reflect.Value
	fields map[string]fieldInfo
}

// Struct adapts a struct (or pointer to struct) to Fields. A placeholder
// name matches the `db:"name"` tag when present, otherwise the exact,
// case-sensitive Go field name. Only the struct's own fields and the
// promoted fields of embedded structs are visible, with Go's shadowing
// rules: the shallowest field wins and a tie at that depth is ambiguous.
// A named struct-typed field is a single value, never a path into its
// fields. Unexported fields and fields tagged `db:"-"` are hidden. Values
// are read at lookup time, so the adapter observes later changes.
//
// A nil pointer or a non-struct value yields an adapter with no fields.
func Struct(v any) Fields {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return noFields
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return noFields
	}
	return &structFields{v: rv, fields: fieldsOf(rv.Type())}
}

var noFields = FieldsFunc(func(string) (any, bool) { return nil, false })

func (s *structFields) Field(name string) (any, bool) {
	fi, ok := s.fields[name]
	switch {
	case !ok:
		return nil, false
	case fi.ambiguous:
		return ambiguousSentinel{name: name}, true
	}
	v := s.v
	for _, i := range fi.index {
		if v.Kind() == reflect.Pointer {
			// Fields promoted through a nil embedded pointer read as NULL.
			if v.IsNil() {
				return nil, true
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v.Interface(), true
}

// fieldsOf returns the visible fields of struct type t, computing them once
// per type.
func fieldsOf(t reflect.Type) map[string]fieldInfo {
	if m, ok := structFieldsByType.Load(t); ok {
		return m.(map[string]fieldInfo)
	}
	m := make(map[string]fieldInfo, t.NumField())
	collectFields(m, t, nil, map[reflect.Type]bool{})
	actual, _ := structFieldsByType.LoadOrStore(t, m)
	return actual.(map[string]fieldInfo)
}

// collectFields adds the fields of t found at index path prefix to m,
// descending into embedded structs.
func collectFields(m map[string]fieldInfo, t reflect.Type, prefix []int, onPath map[reflect.Type]bool) {
	if onPath[t] {
		return
	}
	onPath[t] = true
	defer delete(onPath, t)

	depth := len(prefix)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("db"), ",")
		if tag == "-" {
			continue
		}
		index := append(prefix[:depth:depth], i)

		if embedded, ok := embeddedStruct(f); ok && tag == "" {
			collectFields(m, embedded, index, onPath)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		prev, seen := m[name]
		switch {
		case !seen || depth < prev.depth:
			m[name] = fieldInfo{index: index, depth: depth}
		case depth == prev.depth:
			prev.ambiguous = true
			m[name] = prev
		}
	}
}

// embeddedStruct reports the struct type promoted by an anonymous field.
// Time, Scanner and Valuer types stay single values.
func embeddedStruct(f reflect.StructField) (reflect.Type, bool) {
	if !f.Anonymous {
		return nil, false
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.ConvertibleTo(timeType) {
		return nil, false
	}
	for _, it := range []reflect.Type{t, reflect.PointerTo(t)} {
		if it.Implements(scannerIface) || it.Implements(valuerIface) {
			return nil, false
		}
	}
	return t, true
}
