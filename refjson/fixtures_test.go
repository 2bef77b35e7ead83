package refjson_test

import (
	"context"
	"reflect"
	"sync"

	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/pkg/store"
	"github.com/bizref/bizref/refjson"
)

type Note struct {
	models.Base[Note]
	Content string `json:"content"`
}

func newNote(id int64, content string) *Note {
	return &Note{Base: models.NewBase(models.BusinessID[Note](id)), Content: content}
}

type Customer struct {
	models.Base[Customer]
	Name     string     `json:"name"`
	Invoices []*Invoice `json:"invoices,omitempty"`
}

func newCustomer(id int64, name string) *Customer {
	return &Customer{Base: models.NewBase(models.BusinessID[Customer](id)), Name: name}
}

type Invoice struct {
	models.Base[Invoice]
	Content  string    `json:"content"`
	Customer *Customer `json:"customer,omitempty" ref:"reference"`
}

type Holder struct {
	Invoice *Note `json:"invoice"`
}

type FullHolder struct {
	Invoice *Note `json:"invoice" ref:"full"`
}

type CustomerView struct {
	Customer *Customer `json:"customer" ref:"full"`
}

type BaseOrder struct {
	Customer *Customer `json:"customer" ref:"full"`
}

// SpecialOrder redeclares customer without an annotation.
type SpecialOrder struct {
	BaseOrder
	Customer *Customer `json:"customer"`
}

type Shipment struct {
	Label string    `json:"label"`
	Owner *Customer `json:"owner" ref:",unwrapped"`
}

type Parcel struct {
	Label string    `json:"label"`
	Owner *Customer `json:"owner" ref:"full,unwrapped,prefix=owner_"`
}

type Batch struct {
	Notes []*Note `json:"notes" ref:"full"`
}

type loadCall struct {
	ID   models.ID
	Type reflect.Type
}

// recordingLoader answers from a fixed set of entities and records every call.
type recordingLoader struct {
	mu       sync.Mutex
	calls    []loadCall
	entities map[models.Key]models.Entity
	err      error
}

func newRecordingLoader(entities ...models.Entity) *recordingLoader {
	l := &recordingLoader{entities: map[models.Key]models.Entity{}}
	for _, e := range entities {
		l.entities[models.KeyOf(e)] = e
	}
	return l
}

func (l *recordingLoader) GetByBusinessID(_ context.Context, id models.ID, t reflect.Type) (models.Entity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, loadCall{ID: id, Type: t})
	if l.err != nil {
		return nil, l.err
	}
	e, ok := l.entities[models.Key{Type: t, ID: id}]
	if !ok {
		return nil, store.NotFound(t, id)
	}
	return e, nil
}

func (l *recordingLoader) Calls() []loadCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]loadCall(nil), l.calls...)
}

func newCodec(l store.Loader) *refjson.Codec {
	cfg := refjson.NewConfig()
	cfg.Loader = l
	return refjson.New(cfg)
}
