package refjson

import (
	"fmt"
	"reflect"

	"github.com/buger/jsonparser"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/scope"
)

// decodeEntity reads an entity found at pos. null is nil whatever the mode.
func (d *decoder) decodeEntity(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) error {
	if d.codec.resolve(pos) == models.Reference {
		return d.decodeReference(v, data, dt, pos)
	}

	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		if dt != jsonparser.Object {
			return d.typeError(v, dt, pos)
		}
		return d.decodeStruct(v, data, pos)
	}
	return d.decodeStructural(v, data, dt, pos)
}

// decodeReference parses a business id token and loads the entity it names.
// Parse and loader errors are returned as they are.
func (d *decoder) decodeReference(v reflect.Value, data []byte, dt jsonparser.ValueType, pos *scope.Position) error {
	id, err := parseIDToken(data, dt)
	if err != nil {
		if _, ok := err.(*models.ParseError); ok {
			return err
		}
		return pathError(pos, err)
	}
	return d.load(v, id, pos)
}

func parseIDToken(data []byte, dt jsonparser.ValueType) (models.ID, error) {
	var text string
	switch dt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(data)
		if err != nil {
			return 0, err
		}
		text = s
	case jsonparser.Number:
		text = string(data)
	default:
		return 0, fmt.Errorf("%w: business id must be a string or a number, got %s", constants.ErrUnexpectedJSONType, dt)
	}
	return models.ParseID(text)
}

func (d *decoder) load(v reflect.Value, id models.ID, pos *scope.Position) error {
	if d.codec.loader == nil {
		return pathError(pos, constants.ErrNoLoader)
	}

	target := models.EntityType(v.Type())
	d.codec.log.Trace().Str("path", pos.Path()).Stringer("type", target).Stringer("id", id).Msg("loading referenced entity")

	ent, err := d.codec.loader.GetByBusinessID(d.ctx, id, target)
	if err != nil {
		return err
	}
	return assignEntity(v, ent, pos)
}

// assignEntity stores ent into v, bridging pointer and value forms.
func assignEntity(v reflect.Value, ent models.Entity, pos *scope.Position) error {
	if ent == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	ev := reflect.ValueOf(ent)

	switch {
	case ev.Type().AssignableTo(v.Type()):
		v.Set(ev)
	case ev.Kind() == reflect.Pointer && ev.Type().Elem().AssignableTo(v.Type()):
		if ev.IsNil() {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		v.Set(ev.Elem())
	case v.Kind() == reflect.Pointer && ev.Type().AssignableTo(v.Type().Elem()):
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(ev)
		v.Set(p)
	default:
		return pathError(pos, fmt.Errorf("%w: loader returned %T for %s", constants.ErrNotEntity, ent, v.Type()))
	}
	return nil
}
