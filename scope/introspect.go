package scope

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/bizref/bizref/pkg/constants"
	"github.com/bizref/bizref/pkg/memo"
	"github.com/bizref/bizref/pkg/models"
)

// Introspector answers the metadata questions the resolver and the codec ask
// about types. Lookups return ok=false instead of failing when nothing is found.
type Introspector interface {
	// IsEntityType reports whether values of t are entities.
	IsEntityType(t reflect.Type) bool
	// FieldScope returns the annotation on the field visible under property name on t.
	FieldScope(t reflect.Type, name string) (models.ReferenceMode, bool)
	// AccessorScope returns the annotation on the getter for property name on t.
	AccessorScope(t reflect.Type, name string) (models.ReferenceMode, bool)
	// TypeScope returns the annotation declared on t itself.
	TypeScope(t reflect.Type) (models.ReferenceMode, bool)
	// Ancestors lists the types t inherits from through embedding, nearest first.
	Ancestors(t reflect.Type) []reflect.Type
	// Fields lists the json properties of struct type t.
	Fields(t reflect.Type) ([]Field, error)
}

var entityType = reflect.TypeOf((*models.Entity)(nil)).Elem()

// Annotations holds scope annotations that cannot be written as struct tags:
// those on types declared elsewhere and those on accessor methods.
type Annotations struct {
	mu        sync.RWMutex
	types     map[reflect.Type]models.ReferenceMode
	accessors map[accessorKey]models.ReferenceMode
}

type accessorKey struct {
	typ    reflect.Type
	method string
}

func NewAnnotations() *Annotations {
	return &Annotations{
		types:     make(map[reflect.Type]models.ReferenceMode),
		accessors: make(map[accessorKey]models.ReferenceMode),
	}
}

// Type annotates t. Types embedding t inherit the annotation.
func (a *Annotations) Type(t reflect.Type, mode models.ReferenceMode) *Annotations {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.types[indirect(t)] = mode
	return a
}

// Accessor annotates the getter method of t, e.g. "Customer" for property "customer".
func (a *Annotations) Accessor(t reflect.Type, method string, mode models.ReferenceMode) *Annotations {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessors[accessorKey{typ: indirect(t), method: method}] = mode
	return a
}

// AnnotateType annotates T.
func AnnotateType[T any](a *Annotations, mode models.ReferenceMode) *Annotations {
	return a.Type(reflect.TypeOf((*T)(nil)).Elem(), mode)
}

// AnnotateAccessor annotates method of T.
func AnnotateAccessor[T any](a *Annotations, method string, mode models.ReferenceMode) *Annotations {
	return a.Accessor(reflect.TypeOf((*T)(nil)).Elem(), method, mode)
}

func (a *Annotations) typeScope(t reflect.Type) (models.ReferenceMode, bool) {
	if a == nil {
		return 0, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.types[t]
	return m, ok
}

func (a *Annotations) accessorScope(t reflect.Type, method string) (models.ReferenceMode, bool) {
	if a == nil {
		return 0, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.accessors[accessorKey{typ: t, method: method}]
	return m, ok
}

type typeMeta struct {
	fields    []Field
	byName    map[string]*Field
	ancestors []reflect.Type
	// marker is the annotation on the blank `_` field, zero if none.
	marker models.ReferenceMode
	err    error
}

// TagIntrospector reads annotations from struct tags and from an optional
// Annotations registry. Per-type metadata is computed once.
type TagIntrospector struct {
	annotations *Annotations
	meta        *memo.Cache[reflect.Type, *typeMeta]
}

type IntrospectorOption func(*introspectorConfig)

type introspectorConfig struct {
	annotations *Annotations
	log         zerolog.Logger
}

// WithAnnotations attaches a registry of type and accessor annotations.
func WithAnnotations(a *Annotations) IntrospectorOption {
	return func(cfg *introspectorConfig) {
		cfg.annotations = a
	}
}

func WithIntrospectorLogger(log zerolog.Logger) IntrospectorOption {
	return func(cfg *introspectorConfig) {
		cfg.log = log
	}
}

func NewTagIntrospector(opts ...IntrospectorOption) *TagIntrospector {
	cfg := introspectorConfig{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &TagIntrospector{
		annotations: cfg.annotations,
		meta:        memo.New[reflect.Type, *typeMeta](buildTypeMeta, memo.WithLogger(cfg.log)),
	}
}

func buildTypeMeta(_ context.Context, t reflect.Type) (*typeMeta, error) {
	meta := &typeMeta{byName: map[string]*Field{}}
	if t.Kind() != reflect.Struct {
		return meta, nil
	}

	// Metadata errors are recorded on the entry rather than failing the build, so
	// that lookups stay option-returning and Fields can report them.
	meta.fields, meta.err = VisibleFields(t)
	for i := range meta.fields {
		meta.byName[meta.fields[i].Name] = &meta.fields[i]
	}
	meta.ancestors = embeddedTypes(t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name != "_" {
			continue
		}
		if _, ok := sf.Tag.Lookup(constants.RefTag); !ok {
			continue
		}
		tag, err := ParseTag(sf)
		if err != nil {
			if meta.err == nil {
				meta.err = fmt.Errorf("%s: %w", t, err)
			}
			break
		}
		meta.marker = tag.Mode
		break
	}
	return meta, nil
}

func (in *TagIntrospector) lookup(t reflect.Type) *typeMeta {
	t = indirect(t)
	if t == nil {
		return nil
	}
	meta, _ := in.meta.Get(context.Background(), t)
	return meta
}

func (in *TagIntrospector) IsEntityType(t reflect.Type) bool {
	if t == nil || t.Kind() == reflect.Interface {
		return false
	}
	if t.Implements(entityType) {
		return true
	}
	return t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(entityType)
}

func (in *TagIntrospector) FieldScope(t reflect.Type, name string) (models.ReferenceMode, bool) {
	meta := in.lookup(t)
	if meta == nil {
		return 0, false
	}
	f, ok := meta.byName[name]
	if !ok || f.Tag.Mode == 0 {
		return 0, false
	}
	return f.Tag.Mode, true
}

func (in *TagIntrospector) AccessorScope(t reflect.Type, name string) (models.ReferenceMode, bool) {
	t = indirect(t)
	if t == nil {
		return 0, false
	}
	method := GetterName(name)
	m, ok := reflect.PointerTo(t).MethodByName(method)
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() == 0 {
		return 0, false
	}
	return in.annotations.accessorScope(t, method)
}

func (in *TagIntrospector) TypeScope(t reflect.Type) (models.ReferenceMode, bool) {
	t = indirect(t)
	if t == nil {
		return 0, false
	}
	if meta := in.lookup(t); meta != nil && meta.marker != 0 {
		return meta.marker, true
	}
	return in.annotations.typeScope(t)
}

func (in *TagIntrospector) Ancestors(t reflect.Type) []reflect.Type {
	if meta := in.lookup(t); meta != nil {
		return meta.ancestors
	}
	return nil
}

func (in *TagIntrospector) Fields(t reflect.Type) ([]Field, error) {
	meta := in.lookup(t)
	if meta == nil {
		return nil, nil
	}
	return meta.fields, meta.err
}

// GetterName returns the Go getter method name for a property: "customer" -> "Customer".
func GetterName(property string) string {
	r, size := utf8.DecodeRuneInString(property)
	if r == utf8.RuneError {
		return property
	}
	return string(unicode.ToUpper(r)) + property[size:]
}

var _ Introspector = (*TagIntrospector)(nil)
