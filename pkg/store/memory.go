package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bizref/bizref/pkg/models"
)

// Memory keeps entities in a map keyed by runtime type and business id.
// Entities are stored as given, so callers should save pointers.
type Memory struct {
	log zerolog.Logger

	mu       sync.RWMutex
	entities map[models.Key]models.Entity
	lastID   int64
}

func NewMemory(log zerolog.Logger) *Memory {
	return &Memory{
		log:      log,
		entities: make(map[models.Key]models.Entity),
	}
}

func (m *Memory) Save(ctx context.Context, e models.Persistable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil || reflect.ValueOf(e).Kind() != reflect.Pointer || reflect.ValueOf(e).IsNil() {
		return fmt.Errorf("memory store: save requires a non-nil entity pointer, got %T", e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := e.SurrogateID(); !ok {
		m.lastID++
		if err := e.AssignSurrogateID(m.lastID); err != nil {
			return err
		}
	}

	key := models.KeyOf(e)
	m.entities[key] = e
	m.log.Debug().Stringer("key", key).Msg("entity saved")
	return nil
}

func (m *Memory) GetByBusinessID(ctx context.Context, id models.ID, t reflect.Type) (models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := models.Key{Type: models.EntityType(t), ID: id}

	m.mu.RLock()
	e, ok := m.entities[key]
	m.mu.RUnlock()

	if !ok {
		return nil, NotFound(t, id)
	}
	return e, nil
}

// Len returns the number of stored entities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
