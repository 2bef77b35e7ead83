package store

import (
	"context"
	"reflect"

	"golang.org/x/sync/singleflight"

	"github.com/bizref/bizref/pkg/models"
)

// Coalescing deduplicates concurrent loads of the same entity. A document that
// references one customer from a hundred invoice lines hits the backing loader
// once per burst instead of once per line.
//
// The load runs under the context of the caller that started it. Other callers
// stop waiting when their own context is done.
type Coalescing struct {
	loader Loader
	group  singleflight.Group
}

func Coalesce(l Loader) *Coalescing {
	return &Coalescing{loader: l}
}

func (c *Coalescing) GetByBusinessID(ctx context.Context, id models.ID, t reflect.Type) (models.Entity, error) {
	et := models.EntityType(t)
	key := et.PkgPath() + "." + et.Name() + "#" + id.String()

	ch := c.group.DoChan(key, func() (any, error) {
		return c.loader.GetByBusinessID(ctx, id, t)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		e, _ := res.Val.(models.Entity)
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Loader = (*Coalescing)(nil)
