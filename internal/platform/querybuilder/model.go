package querybuilder

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// InsertModels builds one multi-row INSERT from db-tagged structs. Every
// model must expose the same columns.
func InsertModels[T any](table string, models []T, suffix string) (string, []any, error) {
	if len(models) == 0 {
		return "", nil, fmt.Errorf("insert models are required")
	}

	builder := InsertInto(table).Suffix(suffix)
	var columns []string
	for i, model := range models {
		cols, vals, err := columnsAndValuesFromModel(model)
		if err != nil {
			return "", nil, fmt.Errorf("model %d: %w", i, err)
		}
		if i == 0 {
			columns = cols
			builder.Columns(cols...)
		} else if !slices.Equal(columns, cols) {
			return "", nil, fmt.Errorf("model %d columns differ from model 0", i)
		}
		builder.Values(vals...)
	}
	return builder.ToSQL()
}

// Batches splits items into consecutive slices of at most size elements.
// The slices share items' backing array.
func Batches[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 || size >= len(items) {
		return [][]T{items}
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// Columns lists the db tags of a model in field order.
func Columns(model any) []string {
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}
	return slices.Clone(fieldsOf(typ).columns)
}

type modelFields struct {
	columns []string
	index   []int
}

// Field layouts are resolved once per struct type.
var fieldCache sync.Map

func fieldsOf(typ reflect.Type) modelFields {
	if cached, ok := fieldCache.Load(typ); ok {
		return cached.(modelFields)
	}

	var fields modelFields
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		col := strings.TrimSpace(strings.Split(field.Tag.Get("db"), ",")[0])
		if col == "" || col == "-" {
			continue
		}
		fields.columns = append(fields.columns, col)
		fields.index = append(fields.index, i)
	}

	fieldCache.Store(typ, fields)
	return fields
}

func columnsAndValuesFromModel(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be struct")
	}

	fields := fieldsOf(value.Type())
	if len(fields.columns) == 0 {
		return nil, nil, fmt.Errorf("model has no db columns")
	}

	vals := make([]any, 0, len(fields.index))
	for _, i := range fields.index {
		vals = append(vals, value.Field(i).Interface())
	}
	return fields.columns, vals, nil
}
