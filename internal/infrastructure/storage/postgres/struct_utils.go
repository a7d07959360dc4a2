package postgres

import (
	"reflect"
	"sync"
)

// Column lists are derived from the "db" tags of the repository row
// structs, once per type.
var columnCache sync.Map // map[reflect.Type][]taggedField

type taggedField struct {
	index  []int
	column string
}

func taggedFields(t reflect.Type) []taggedField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]taggedField)
	}

	var fields []taggedField
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, taggedField{index: f.Index, column: tag})
		}
	}
	columnCache.Store(t, fields)
	return fields
}

// Columns returns the db column names of T in field order, including
// fields of embedded structs.
func Columns[T any]() []string {
	fields := taggedFields(reflect.TypeOf((*T)(nil)).Elem())
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// Values returns the tagged field values of v in the order of Columns.
func Values(v any) []any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := taggedFields(rv.Type())
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = rv.FieldByIndex(f.index).Interface()
	}
	return out
}

// StructToMap converts a struct to a column -> value map using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := taggedFields(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}
