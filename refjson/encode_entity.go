package refjson

import (
	"reflect"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/scope"
)

func (c *Codec) resolve(pos *scope.Position) models.ReferenceMode {
	return c.resolver.Resolve(pos, c.defaultMode)
}

// encodeEntity writes an entity found at pos. A nil entity is null whatever
// the mode.
func (e *encoder) encodeEntity(v reflect.Value, pos *scope.Position) error {
	ent, ok := entityOf(v)
	if !ok {
		e.w.Null()
		return nil
	}

	switch e.codec.resolve(pos) {
	case models.Reference:
		return e.w.String(ent.EntityID().String())
	default:
		return e.encodeFull(v, pos)
	}
}

func (e *encoder) encodeFull(v reflect.Value, pos *scope.Position) error {
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		return e.encodeStruct(v, pos)
	}
	return e.encodeStructural(v, pos)
}

// encodeUnwrapped writes the members of an unwrapped field straight into the
// enclosing object. A nil field contributes nothing.
func (e *encoder) encodeUnwrapped(v reflect.Value, fc *FieldCodec, pos *scope.Position, rename renamer) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	if fc.Entity && e.codec.resolve(pos) == models.Reference {
		ent, ok := entityOf(v)
		if !ok {
			return nil
		}
		if err := e.w.Key(constants.BusinessIDField); err != nil {
			return pathError(pos, err)
		}
		return e.w.String(ent.EntityID().String())
	}

	tc, err := e.codec.types.Get(e.ctx, v.Type())
	if err != nil {
		return err
	}
	return e.encodeFields(v, tc, pos, rename.wrap(fc.Tag))
}
