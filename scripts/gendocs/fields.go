package main

import (
	"reflect"
	"strings"
	"time"
)

// fieldDoc is one documented field of a serialized type.
type fieldDoc struct {
	Path     string
	Type     string
	Optional bool
}

var timeType = reflect.TypeOf(time.Time{})

// structFields flattens the fields of t under the given struct tag
// (json or yaml). Nested structs are listed as parent.child and slices of
// structs as parent[].child.
func structFields(t reflect.Type, tag, prefix string) []fieldDoc {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var out []fieldDoc
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		path := prefix + name
		doc := fieldDoc{
			Path:     path,
			Type:     typeName(f.Type),
			Optional: strings.Contains(opts, "omitempty"),
		}
		out = append(out, doc)

		switch elem := f.Type; {
		case elem.Kind() == reflect.Struct && elem != timeType:
			out = append(out, structFields(elem, tag, path+".")...)
		case elem.Kind() == reflect.Slice && elem.Elem().Kind() == reflect.Struct:
			out = append(out, structFields(elem.Elem(), tag, path+"[].")...)
		}
	}
	return out
}

func typeName(t reflect.Type) string {
	switch {
	case t == timeType:
		return "timestamp"
	case t.Kind() == reflect.Slice:
		return "list of " + typeName(t.Elem())
	case t.Kind() == reflect.Struct:
		return "object"
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		return "integer"
	}
	return t.Kind().String()
}

// fieldRowsOf renders flattened fields as table rows.
func fieldRowsOf(fields []fieldDoc) [][]string {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		req := "yes"
		if f.Optional {
			req = "no"
		}
		rows = append(rows, []string{InlineCode(f.Path), f.Type, req})
	}
	return rows
}
