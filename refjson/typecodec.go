package refjson

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bizref/bizref/pkg/memo"
	"github.com/bizref/bizref/scope"
)

// TypeCodec is the per-type plan the structural codec follows for a struct:
// which members exist, where they live and which of them hold entities.
type TypeCodec struct {
	Type   reflect.Type
	Fields []*FieldCodec
}

// FieldCodec describes one member of a struct.
type FieldCodec struct {
	scope.Field
	// Entity is set when the field holds an entity, directly or through pointers.
	Entity bool
}

// TypeCache builds each TypeCodec once and shares it between all walks.
//
// Builds never consult the cache for nested types; those are looked up when a
// walk reaches them, so self-referencing types build without waiting on
// themselves.
type TypeCache struct {
	in    scope.Introspector
	codes *memo.Cache[reflect.Type, *TypeCodec]
}

func NewTypeCache(in scope.Introspector, opts ...memo.Option) *TypeCache {
	c := &TypeCache{in: in}
	c.codes = memo.New[reflect.Type, *TypeCodec](c.build, opts...)
	return c
}

// Get returns the codec for struct type t, building it on first use.
func (c *TypeCache) Get(ctx context.Context, t reflect.Type) (*TypeCodec, error) {
	return c.codes.Get(ctx, t)
}

// Len returns the number of types built or being built.
func (c *TypeCache) Len() int {
	return c.codes.Len()
}

func (c *TypeCache) build(_ context.Context, t reflect.Type) (*TypeCodec, error) {
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{Type: t, Reason: "not a struct"}
	}

	fields, err := c.in.Fields(t)
	if err != nil {
		return nil, fmt.Errorf("refjson: %s: %w", t, err)
	}

	tc := &TypeCodec{Type: t, Fields: make([]*FieldCodec, 0, len(fields))}
	for _, f := range fields {
		fc := &FieldCodec{Field: f, Entity: c.in.IsEntityType(f.Type)}
		if f.Tag.Unwrapped && indirectType(f.Type).Kind() != reflect.Struct {
			return nil, &UnsupportedTypeError{
				Type:   f.Type,
				Reason: fmt.Sprintf("field %s.%s is unwrapped but not a struct", t, f.Name),
			}
		}
		tc.Fields = append(tc.Fields, fc)
	}
	return tc, nil
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
