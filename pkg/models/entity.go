package models

import (
	"fmt"
	"reflect"

	"github.com/bizref/bizref/pkg/constants"
)

// Entity is a domain object whose identity is a business id, independent of any
// storage-assigned surrogate id.
type Entity interface {
	EntityID() ID
}

// Persistable is implemented by entities whose surrogate id is assigned by a store.
type Persistable interface {
	Entity
	SurrogateID() (int64, bool)
	AssignSurrogateID(id int64) error
}

// Base is embedded by entity types. T is the embedding entity type itself:
//
//	type Invoice struct {
//		models.Base[Invoice]
//		Content string `json:"content"`
//	}
//
// ID is the storage surrogate. It stays zero until the first commit and is never
// serialized; it has no bearing on equality.
type Base[T any] struct {
	ID         int64         `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	BusinessID BusinessID[T] `json:"businessId" gorm:"column:business_id;uniqueIndex;not null"`
}

// NewBase returns a Base identified by id and not yet persisted.
func NewBase[T any](id BusinessID[T]) Base[T] {
	return Base[T]{BusinessID: id}
}

func (b Base[T]) EntityID() ID { return b.BusinessID.ID() }

// IsNew reports whether the entity has not been committed to storage yet.
func (b Base[T]) IsNew() bool { return b.ID == 0 }

func (b Base[T]) SurrogateID() (int64, bool) {
	return b.ID, b.ID != 0
}

// AssignSurrogateID records the storage-assigned id. It succeeds exactly once.
func (b *Base[T]) AssignSurrogateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", constants.ErrInvalidSurrogate, id)
	}
	if b.ID != 0 {
		return fmt.Errorf("%w: %d", constants.ErrSurrogateAssigned, b.ID)
	}
	b.ID = id
	return nil
}

// Key is a comparable identity for an entity, usable as a map key.
type Key struct {
	Type reflect.Type
	ID   ID
}

func (k Key) String() string {
	if k.Type == nil {
		return "<nil>:" + k.ID.String()
	}
	return k.Type.String() + ":" + k.ID.String()
}

// KeyOf returns the identity of e. Pointer and value forms of the same entity
// type share a key.
func KeyOf(e Entity) Key {
	return Key{Type: EntityType(reflect.TypeOf(e)), ID: e.EntityID()}
}

// EntityType strips pointer indirections so that *Invoice and Invoice map to the
// same runtime type.
func EntityType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Equal reports whether a and b are the same entity: same runtime type and same
// business id. Surrogate ids and all other fields are ignored.
func Equal(a, b Entity) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	return KeyOf(a) == KeyOf(b)
}

// Hash derives a hash from the business id alone, consistent with Equal.
func Hash(e Entity) uint64 {
	if isNil(e) {
		return 0
	}
	v := uint64(e.EntityID())
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	v *= 0xc4ceb9fe1a85ec53
	v ^= v >> 33
	return v
}

func isNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
