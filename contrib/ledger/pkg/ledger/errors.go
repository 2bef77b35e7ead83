package ledger

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/bizref/bizref/pkg/models"
)

var errDuplicate = errors.New("business id already in use")

func errUnexpectedEntity(e models.Entity) error {
	return fmt.Errorf("store returned unexpected entity %T", e)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
