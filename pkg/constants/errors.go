package constants

import "errors"

// Errors
var (
	ErrParse              = errors.New("invalid business id")
	ErrNotFound           = errors.New("entity not found")
	ErrAmbiguousResult    = errors.New("more than one entity matches business id")
	ErrSurrogateAssigned  = errors.New("surrogate id already assigned")
	ErrInvalidSurrogate   = errors.New("surrogate id must be positive")
	ErrInvalidMode        = errors.New("invalid reference mode")
	ErrNoLoader           = errors.New("entity loader is not set")
	ErrNotEntity          = errors.New("value is not an entity")
	ErrInvalidUnmarshal   = errors.New("unmarshal requires non-nil pointer")
	ErrUnexpectedJSONType = errors.New("unexpected JSON value type")
	ErrReadOnly           = errors.New("operation denied: store is read-only")
	ErrSyntax             = errors.New("invalid JSON document")
)
