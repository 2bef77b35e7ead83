package refjson

import (
	"fmt"
	"reflect"

	"github.com/bizref/bizref/scope"
)

// UnsupportedTypeError is returned for values the codec cannot represent, such
// as channels, functions and complex numbers.
type UnsupportedTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("refjson: unsupported type %s", e.Type)
	}
	return fmt.Sprintf("refjson: unsupported type %s: %s", e.Type, e.Reason)
}

// PathError locates a structural failure in the document.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("refjson: %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathError(pos *scope.Position, err error) error {
	if _, ok := err.(*PathError); ok {
		return err
	}
	return &PathError{Path: pos.Path(), Err: err}
}
