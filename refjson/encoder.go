package refjson

import (
	"context"
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/scope"
)

var (
	marshalerType       = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	unmarshalerType     = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	entityIfaceType     = reflect.TypeOf((*models.Entity)(nil)).Elem()
)

// encoder is one encoding walk.
type encoder struct {
	codec *Codec
	ctx   context.Context
	w     *writer
}

func (e *encoder) encodeValue(v reflect.Value, pos *scope.Position) error {
	if !v.IsValid() {
		e.w.Null()
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			e.w.Null()
			return nil
		}
		return e.encodeValue(v.Elem(), pos)
	}
	if e.codec.in.IsEntityType(v.Type()) {
		return e.encodeEntity(v, pos)
	}
	return e.encodeStructural(v, pos)
}

// encodeStructural writes v without checking whether it is an entity.
func (e *encoder) encodeStructural(v reflect.Value, pos *scope.Position) error {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		e.w.Null()
		return nil
	}
	if ok, err := e.tryMarshaler(v, pos); ok {
		return err
	}

	switch v.Kind() {
	case reflect.Pointer:
		return e.encodeValue(v.Elem(), pos)
	case reflect.Struct:
		return e.encodeStruct(v, pos)
	case reflect.Map:
		return e.encodeMap(v, pos)
	case reflect.Slice:
		if v.IsNil() {
			e.w.Null()
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return e.encodeLeaf(v, pos)
		}
		return e.encodeArray(v, pos)
	case reflect.Array:
		return e.encodeArray(v, pos)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return e.encodeLeaf(v, pos)
	default:
		return pathError(pos, &UnsupportedTypeError{Type: v.Type()})
	}
}

// tryMarshaler hands values implementing json.Marshaler or
// encoding.TextMarshaler to go-json.
func (e *encoder) tryMarshaler(v reflect.Value, pos *scope.Position) (bool, error) {
	t := v.Type()
	switch {
	case t.Implements(marshalerType):
	case v.CanAddr() && reflect.PointerTo(t).Implements(marshalerType):
		v = v.Addr()
	case t.Implements(textMarshalerType):
	case v.CanAddr() && reflect.PointerTo(t).Implements(textMarshalerType):
		v = v.Addr()
	default:
		return false, nil
	}
	return true, e.encodeLeaf(v, pos)
}

func (e *encoder) encodeLeaf(v reflect.Value, pos *scope.Position) error {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return pathError(pos, err)
	}
	e.w.Raw(data)
	return nil
}

func (e *encoder) encodeStruct(v reflect.Value, pos *scope.Position) error {
	tc, err := e.codec.types.Get(e.ctx, v.Type())
	if err != nil {
		return err
	}
	e.w.BeginObject()
	if err := e.encodeFields(v, tc, pos, nil); err != nil {
		return err
	}
	e.w.EndObject()
	return nil
}

// encodeFields writes the members of struct v into the object currently open.
func (e *encoder) encodeFields(v reflect.Value, tc *TypeCodec, pos *scope.Position, rename renamer) error {
	container := containerOf(v)
	for _, fc := range tc.Fields {
		fv, ok := fieldByIndex(v, fc.Index)
		if !ok {
			continue
		}
		fieldPos := pos.Member(container, fc.Name)

		if fc.Tag.Unwrapped {
			if err := e.encodeUnwrapped(fv, fc, fieldPos, rename); err != nil {
				return err
			}
			continue
		}
		if fc.Tag.OmitEmpty && isEmptyValue(fv) {
			continue
		}
		if err := e.w.Key(rename.apply(fc.Name)); err != nil {
			return pathError(fieldPos, err)
		}
		if err := e.encodeValue(fv, fieldPos); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeMap(v reflect.Value, pos *scope.Position) error {
	if v.IsNil() {
		e.w.Null()
		return nil
	}

	type entry struct {
		key string
		val reflect.Value
	}

	keyIsEntity := e.codec.in.IsEntityType(v.Type().Key())
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKeyString(iter.Key(), keyIsEntity)
		if err != nil {
			return pathError(pos, err)
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(a.key, b.key)
	})

	container := v.Interface()
	e.w.BeginObject()
	for _, ent := range entries {
		if err := e.w.Key(ent.key); err != nil {
			return pathError(pos, err)
		}
		if err := e.encodeValue(ent.val, pos.Member(container, ent.key)); err != nil {
			return err
		}
	}
	e.w.EndObject()
	return nil
}

// mapKeyString renders a map key. Entity keys are always written as
// references: object keys must be plain strings.
func mapKeyString(k reflect.Value, entity bool) (string, error) {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "", fmt.Errorf("%w: nil map key %s", constants.ErrNotEntity, k.Type())
		}
		k = k.Elem()
		entity = k.Type().Implements(entityIfaceType) || reflect.PointerTo(k.Type()).Implements(entityIfaceType)
	}
	if entity {
		ent, ok := entityOf(k)
		if !ok {
			return "", fmt.Errorf("%w: nil map key %s", constants.ErrNotEntity, k.Type())
		}
		return ent.EntityID().String(), nil
	}
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		text, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(text), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", &UnsupportedTypeError{Type: k.Type(), Reason: "map key"}
}

func (e *encoder) encodeArray(v reflect.Value, pos *scope.Position) error {
	container := containerOf(v)
	e.w.BeginArray()
	for i := 0; i < v.Len(); i++ {
		if err := e.encodeValue(v.Index(i), pos.Element(container)); err != nil {
			return err
		}
	}
	e.w.EndArray()
	return nil
}

// renamer maps member names of unwrapped structs to the names they take in the
// enclosing object. nil is the identity.
type renamer func(string) string

func (r renamer) apply(name string) string {
	if r == nil {
		return name
	}
	return r(name)
}

func (r renamer) wrap(tag scope.FieldTag) renamer {
	if tag.Prefix == "" && tag.Suffix == "" {
		return r
	}
	return func(name string) string {
		return r.apply(tag.Rename(name))
	}
}

// containerOf returns the value recorded in positions for a container.
func containerOf(v reflect.Value) any {
	if v.CanAddr() {
		return v.Addr().Interface()
	}
	return v.Interface()
}

// fieldByIndex is reflect.Value.FieldByIndex that reports false instead of
// panicking on a nil embedded pointer.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, false
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, true
}

// entityOf returns v as an entity, false for nil pointers.
func entityOf(v reflect.Value) (models.Entity, bool) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	if ent, ok := v.Interface().(models.Entity); ok {
		return ent, true
	}
	if v.CanAddr() {
		ent, ok := v.Addr().Interface().(models.Entity)
		return ent, ok
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	ent, ok := p.Interface().(models.Entity)
	return ent, ok
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
