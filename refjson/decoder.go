package refjson

import (
	"context"
	"encoding"
	"fmt"
	"reflect"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/scope"
)

// decoder is one decoding walk. Values arrive as jsonparser hands them out:
// strings without their quotes and still escaped, objects and arrays raw.
type decoder struct {
	codec *Codec
	ctx   context.Context
}

func (d *decoder) decodeValue(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) error {
	if dt == jsonparser.Null {
		switch v.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			v.Set(reflect.Zero(v.Type()))
		}
		return nil
	}
	if d.codec.in.IsEntityType(v.Type()) {
		return d.decodeEntity(v, data, dt, pos)
	}
	return d.decodeStructural(v, data, dt, pos)
}

// decodeStructural fills v without checking whether it is an entity.
func (d *decoder) decodeStructural(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) error {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return d.decodeValue(v.Elem(), data, dt, pos)
	}
	if ok, err := d.tryUnmarshaler(v, data, dt, pos); ok {
		return err
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return pathError(pos, &UnsupportedTypeError{Type: v.Type(), Reason: "non-empty interface"})
		}
		var x any
		if err := json.Unmarshal(rawToken(data, dt), &x); err != nil {
			return pathError(pos, err)
		}
		if x != nil {
			v.Set(reflect.ValueOf(x))
		}
		return nil
	case reflect.Struct:
		if dt != jsonparser.Object {
			return d.typeError(v, dt, pos)
		}
		return d.decodeStruct(v, data, pos)
	case reflect.Map:
		if dt != jsonparser.Object {
			return d.typeError(v, dt, pos)
		}
		return d.decodeMap(v, data, pos)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 && dt == jsonparser.String {
			return d.decodeLeaf(v, data, dt, pos)
		}
		if dt != jsonparser.Array {
			return d.typeError(v, dt, pos)
		}
		return d.decodeSlice(v, data, pos)
	case reflect.Array:
		if dt != jsonparser.Array {
			return d.typeError(v, dt, pos)
		}
		return d.decodeArray(v, data, pos)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return d.decodeLeaf(v, data, dt, pos)
	default:
		return pathError(pos, &UnsupportedTypeError{Type: v.Type()})
	}
}

// tryUnmarshaler hands values implementing json.Unmarshaler, or
// encoding.TextUnmarshaler for strings, their own token.
func (d *decoder) tryUnmarshaler(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) (bool, error) {
	if !v.CanAddr() {
		return false, nil
	}
	p := v.Addr()

	if p.Type().Implements(unmarshalerType) {
		if err := p.Interface().(json.Unmarshaler).UnmarshalJSON(rawToken(data, dt)); err != nil {
			return true, pathError(pos, err)
		}
		return true, nil
	}
	if dt == jsonparser.String && p.Type().Implements(textUnmarshalerType) {
		text, err := jsonparser.ParseString(data)
		if err != nil {
			return true, pathError(pos, err)
		}
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return true, pathError(pos, err)
		}
		return true, nil
	}
	return false, nil
}

// decodeLeaf decodes scalars and byte slices with go-json.
func (d *decoder) decodeLeaf(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) error {
	if !v.CanAddr() {
		return pathError(pos, fmt.Errorf("cannot decode into unaddressable %s", v.Type()))
	}
	if err := json.Unmarshal(rawToken(data, dt), v.Addr().Interface()); err != nil {
		return pathError(pos, err)
	}
	return nil
}

func (d *decoder) typeError(v reflect.Value, dt jsonparser.ValueType, pos *scope.Position) error {
	return pathError(pos, fmt.Errorf("%w: cannot decode %s into %s", constants.ErrUnexpectedJSONType, dt, v.Type()))
}

// rawToken restores the JSON text of a value as jsonparser returned it.
func rawToken(data []byte, dt jsonparser.ValueType) []byte {
	if dt != jsonparser.String {
		return data
	}
	raw := make([]byte, 0, len(data)+2)
	raw = append(raw, '"')
	raw = append(raw, data...)
	return append(raw, '"')
}
