// Package store resolves business ids back to entities.
//
// The codec consumes a [Loader] when it decodes an entity written as a bare
// business id. A [Store] adds persistence on top and is what applications wire:
// the in-memory [Memory] store for tests and demos, or the gorm-backed store in
// the postgres subpackage.
//
// Loaders report a missing entity with an error matching [ErrNotFound] and more
// than one match with [ErrAmbiguousResult]. The second is a broken store
// invariant; callers must not retry it.
package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/models"
)

var (
	ErrNotFound        = constants.ErrNotFound
	ErrAmbiguousResult = constants.ErrAmbiguousResult
	ErrReadOnly        = constants.ErrReadOnly
)

// Loader loads the entity of type t identified by id.
//
// t is the entity's struct type; implementations must accept pointer types too.
type Loader interface {
	GetByBusinessID(ctx context.Context, id models.ID, t reflect.Type) (models.Entity, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context, id models.ID, t reflect.Type) (models.Entity, error)

func (f LoaderFunc) GetByBusinessID(ctx context.Context, id models.ID, t reflect.Type) (models.Entity, error) {
	return f(ctx, id, t)
}

// Store is a Loader that can also persist entities.
type Store interface {
	Loader

	// Save inserts or updates e. On first save the store assigns the surrogate id.
	Save(ctx context.Context, e models.Persistable) error

	Close() error
}

// NotFound returns an error matching ErrNotFound for the entity of type t and id.
func NotFound(t reflect.Type, id models.ID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, models.EntityType(t), id)
}

// Ambiguous returns an error matching ErrAmbiguousResult.
func Ambiguous(t reflect.Type, id models.ID) error {
	return fmt.Errorf("%w: %s %s", ErrAmbiguousResult, models.EntityType(t), id)
}
