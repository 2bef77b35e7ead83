package scope

import (
	"reflect"
	"slices"
)

// Field is a json property visible on a struct type, possibly promoted from an
// embedded struct.
type Field struct {
	Name  string
	Index []int
	// Depth is the embedding depth; 0 for fields declared on the type itself.
	Depth int
	Type  reflect.Type
	Tag   FieldTag
	// Declaring is the struct type whose declaration the field comes from.
	Declaring reflect.Type
}

// VisibleFields lists the json properties of struct type t in declaration order.
//
// Embedded structs without a json name are inlined. When several declarations
// share a property name the shallowest one wins and hides the others, tags
// included; at equal depth the first declaration wins. The blank field `_` is
// reserved for type-level annotations and never a property.
func VisibleFields(t reflect.Type) ([]Field, error) {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, nil
	}

	type queued struct {
		typ   reflect.Type
		index []int
	}

	var fields []Field
	seen := map[string]bool{}
	visited := map[reflect.Type]bool{}

	current := []queued{{typ: t}}
	for depth := 0; len(current) > 0; depth++ {
		var next []queued
		for _, q := range current {
			if visited[q.typ] {
				continue
			}
			visited[q.typ] = true

			for i := 0; i < q.typ.NumField(); i++ {
				sf := q.typ.Field(i)
				if sf.Name == "_" {
					continue
				}
				tag, err := ParseTag(sf)
				if err != nil {
					return nil, err
				}
				if tag.Skip {
					continue
				}

				index := append(slices.Clone(q.index), i)

				if sf.Anonymous {
					embedded := indirect(sf.Type)
					if tag.Name == "" && embedded.Kind() == reflect.Struct && !tag.Unwrapped {
						next = append(next, queued{typ: embedded, index: index})
						continue
					}
				}
				if !sf.IsExported() {
					continue
				}

				name := tag.Name
				if name == "" {
					name = sf.Name
				}
				if seen[name] {
					continue
				}
				seen[name] = true

				fields = append(fields, Field{
					Name:      name,
					Index:     index,
					Depth:     depth,
					Type:      sf.Type,
					Tag:       tag,
					Declaring: q.typ,
				})
			}
		}
		current = next
	}

	slices.SortFunc(fields, func(a, b Field) int {
		return slices.Compare(a.Index, b.Index)
	})
	return fields, nil
}

// embeddedTypes lists the struct types embedded in t, nearest first.
func embeddedTypes(t reflect.Type) []reflect.Type {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var out []reflect.Type
	visited := map[reflect.Type]bool{t: true}
	current := []reflect.Type{t}
	for len(current) > 0 {
		var next []reflect.Type
		for _, ct := range current {
			for i := 0; i < ct.NumField(); i++ {
				sf := ct.Field(i)
				if !sf.Anonymous {
					continue
				}
				et := indirect(sf.Type)
				if et.Kind() != reflect.Struct || visited[et] {
					continue
				}
				visited[et] = true
				out = append(out, et)
				next = append(next, et)
			}
		}
		current = next
	}
	return out
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
