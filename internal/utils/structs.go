package utils

import (
	"fmt"
	"reflect"
)

// ColumnTag is the struct tag the repositories read column names from.
var ColumnTag = "db"

func structValue(input any) reflect.Value {
	v := reflect.ValueOf(input)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		panic("input must be a struct or a pointer to a struct")
	}
	return v
}

// StructTagValues returns the column names declared on input's fields, in
// declaration order. Fields without a tag, or tagged "-", are skipped.
func StructTagValues(input any) []string {
	v := structValue(input)
	t := v.Type()

	columns := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue
		}
		tag := t.Field(i).Tag.Get(ColumnTag)
		if tag == "" || tag == "-" {
			continue
		}
		columns = append(columns, tag)
	}

	return columns
}

// StructToMap maps column names to field values for use with squirrel's
// SetMap.
func StructToMap(input any) map[string]any {
	v := structValue(input)
	t := v.Type()

	out := make(map[string]any, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue
		}
		tag := t.Field(i).Tag.Get(ColumnTag)
		if tag == "" || tag == "-" {
			continue
		}
		out[tag] = v.Field(i).Interface()
	}

	return out
}

func ErrorWrapOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}

	if msg == "" {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)
}
