package refjson

import (
	"fmt"
	"reflect"

	"github.com/buger/jsonparser"

	"github.com/bizref/bizref/scope"
)

type element struct {
	value []byte
	dt    jsonparser.ValueType
}

func readElements(data []byte) ([]element, error) {
	var elems []element
	var cbErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, err error) {
		if err != nil && cbErr == nil {
			cbErr = err
			return
		}
		elems = append(elems, element{value: value, dt: dt})
	})
	if err != nil {
		return nil, err
	}
	return elems, cbErr
}

func (d *decoder) decodeSlice(v reflect.Value, data []byte, pos *scope.Position) error {
	elems, err := readElements(data)
	if err != nil {
		return pathError(pos, err)
	}

	s := reflect.MakeSlice(v.Type(), len(elems), len(elems))
	container := s.Interface()
	for i, el := range elems {
		if err := d.decodeValue(s.Index(i), el.value, el.dt, pos.Element(container)); err != nil {
			return err
		}
	}
	v.Set(s)
	return nil
}

func (d *decoder) decodeArray(v reflect.Value, data []byte, pos *scope.Position) error {
	elems, err := readElements(data)
	if err != nil {
		return pathError(pos, err)
	}
	if len(elems) > v.Len() {
		return pathError(pos, fmt.Errorf("array of %d elements does not fit %s", len(elems), v.Type()))
	}

	container := containerOf(v)
	for i := 0; i < v.Len(); i++ {
		if i >= len(elems) {
			v.Index(i).Set(reflect.Zero(v.Type().Elem()))
			continue
		}
		if err := d.decodeValue(v.Index(i), elems[i].value, elems[i].dt, pos.Element(container)); err != nil {
			return err
		}
	}
	return nil
}
