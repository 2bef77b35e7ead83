package store

import (
	"context"

	"github.com/bizref/bizref/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects writes while isReadOnly reports true.
// Loads always pass through.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

func NewReadOnlyStore(s Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{Store: s, isReadOnly: isReadOnly}
}

// Unwrap returns the underlying store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) Save(ctx context.Context, e models.Persistable) error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return r.Store.Save(ctx, e)
}
