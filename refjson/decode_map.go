package refjson

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/scope"
)

func (d *decoder) decodeMap(v reflect.Value, data []byte, pos *scope.Position) error {
	t := v.Type()
	if v.IsNil() {
		v.Set(reflect.MakeMap(t))
	}
	keyIsEntity := d.codec.in.IsEntityType(t.Key())
	container := v.Interface()

	return jsonparser.ObjectEach(data, func(rawKey, value []byte, dt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(rawKey)
		if err != nil {
			return pathError(pos, err)
		}
		elemPos := pos.Member(container, name)

		key := reflect.New(t.Key()).Elem()
		if err := d.decodeMapKey(key, name, keyIsEntity, elemPos); err != nil {
			return err
		}

		elem := reflect.New(t.Elem()).Elem()
		if err := d.decodeValue(elem, value, dt, elemPos); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	})
}

// decodeMapKey parses an object key. Entity keys are always references.
func (d *decoder) decodeMapKey(key reflect.Value, name string, entity bool, pos *scope.Position) error {
	if entity {
		id, err := models.ParseID(name)
		if err != nil {
			return err
		}
		return d.load(key, id, pos)
	}

	if key.Kind() == reflect.Interface && key.Type().Implements(entityIfaceType) {
		return pathError(pos, fmt.Errorf("%w: map key type %s names no concrete entity type to load", constants.ErrNotEntity, key.Type()))
	}
	if key.Kind() == reflect.String {
		key.SetString(name)
		return nil
	}
	if reflect.PointerTo(key.Type()).Implements(textUnmarshalerType) {
		if err := key.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(name)); err != nil {
			return pathError(pos, err)
		}
		return nil
	}

	switch key.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, key.Type().Bits())
		if err != nil {
			return pathError(pos, fmt.Errorf("map key %q: %w", name, err))
		}
		key.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(name, 10, key.Type().Bits())
		if err != nil {
			return pathError(pos, fmt.Errorf("map key %q: %w", name, err))
		}
		key.SetUint(n)
		return nil
	}
	return pathError(pos, &UnsupportedTypeError{Type: key.Type(), Reason: "map key"})
}
