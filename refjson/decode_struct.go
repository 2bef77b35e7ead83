package refjson

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/scope"
)

type member struct {
	value []byte
	dt    jsonparser.ValueType
}

// members indexes the members of one JSON object. Lookup tries the exact name
// first and falls back to a case-insensitive match; on duplicates the first
// member wins.
type members struct {
	exact map[string]member
	fold  map[string]member
}

func readMembers(data []byte) (*members, error) {
	m := &members{
		exact: map[string]member{},
		fold:  map[string]member{},
	}
	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		mem := member{value: value, dt: dt}
		if _, ok := m.exact[name]; !ok {
			m.exact[name] = mem
		}
		lower := strings.ToLower(name)
		if _, ok := m.fold[lower]; !ok {
			m.fold[lower] = mem
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *members) lookup(name string) (member, bool) {
	if mem, ok := m.exact[name]; ok {
		return mem, true
	}
	mem, ok := m.fold[strings.ToLower(name)]
	return mem, ok
}

func (d *decoder) decodeStruct(v reflect.Value, data []byte, pos *scope.Position) error {
	tc, err := d.codec.types.Get(d.ctx, v.Type())
	if err != nil {
		return err
	}
	mems, err := readMembers(data)
	if err != nil {
		return pathError(pos, err)
	}
	_, err = d.decodeFields(v, tc, mems, pos, nil)
	return err
}

// decodeFields fills the fields of struct v from mems and reports how many
// fields were found in the object.
func (d *decoder) decodeFields(v reflect.Value, tc *TypeCodec, mems *members, pos *scope.Position, rename renamer) (int, error) {
	container := containerOf(v)
	matched := 0
	for _, fc := range tc.Fields {
		fieldPos := pos.Member(container, fc.Name)

		if fc.Tag.Unwrapped {
			n, err := d.decodeUnwrapped(v, fc, mems, fieldPos, rename)
			if err != nil {
				return matched, err
			}
			matched += n
			continue
		}

		mem, ok := mems.lookup(rename.apply(fc.Name))
		if !ok {
			continue
		}
		matched++
		fv, err := fieldByIndexAlloc(v, fc.Index)
		if err != nil {
			return matched, pathError(fieldPos, err)
		}
		if err := d.decodeValue(fv, mem.value, mem.dt, fieldPos); err != nil {
			return matched, err
		}
	}
	return matched, nil
}

// decodeUnwrapped reads an unwrapped field from the members of the enclosing
// object. A pointer field is only allocated when at least one of its members
// is present.
func (d *decoder) decodeUnwrapped(v reflect.Value, fc *FieldCodec, mems *members, pos *scope.Position, rename renamer) (int, error) {
	if fc.Entity && d.codec.resolve(pos) == models.Reference {
		mem, ok := mems.lookup(constants.BusinessIDField)
		if !ok {
			return 0, nil
		}
		fv, err := fieldByIndexAlloc(v, fc.Index)
		if err != nil {
			return 0, pathError(pos, err)
		}
		if mem.dt == jsonparser.Null {
			fv.Set(reflect.Zero(fv.Type()))
			return 1, nil
		}
		return 1, d.decodeReference(fv, mem.value, mem.dt, pos)
	}

	st := indirectType(fc.Type)
	tc, err := d.codec.types.Get(d.ctx, st)
	if err != nil {
		return 0, err
	}

	target := reflect.New(st)
	n, err := d.decodeFields(target.Elem(), tc, mems, pos, rename.wrap(fc.Tag))
	if err != nil || n == 0 {
		return n, err
	}

	fv, err := fieldByIndexAlloc(v, fc.Index)
	if err != nil {
		return n, pathError(pos, err)
	}
	for fv.Kind() == reflect.Pointer {
		if fv.Type().Elem() == st {
			fv.Set(target)
			return n, nil
		}
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	fv.Set(target.Elem())
	return n, nil
}

// fieldByIndexAlloc is reflect.Value.FieldByIndex allocating nil embedded
// pointers on the way.
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					if !v.CanSet() {
						return reflect.Value{}, fmt.Errorf("cannot set embedded pointer to unexported struct %s", v.Type().Elem())
					}
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, nil
}
