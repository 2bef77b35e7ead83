// Package scope decides, at any point of a document walk, whether an entity is
// written in full or as a bare business id.
//
// Annotations are looked up at each position of the walk, nearest first:
//
//  1. the field visible under the position's member name on the container type,
//  2. the getter for that member on the container type,
//  3. the container type itself, then the types it embeds, nearest first.
//
// When a position yields nothing its parent is consulted, and when the root is
// passed the configured default applies.
package scope

import (
	"github.com/rs/zerolog"

	"github.com/bizref/bizref/pkg/models"
)

// Source names the attachment point an annotation was found on.
type Source uint8

const (
	SourceDefault Source = iota
	SourceField
	SourceAccessor
	SourceType
	SourceAncestor
)

func (s Source) String() string {
	switch s {
	case SourceField:
		return "field"
	case SourceAccessor:
		return "accessor"
	case SourceType:
		return "type"
	case SourceAncestor:
		return "ancestor"
	default:
		return "default"
	}
}

// Decision is a resolved mode together with where it came from.
type Decision struct {
	Mode   models.ReferenceMode
	Source Source
	// Hops is the number of parents walked before the annotation was found.
	Hops int
}

// Resolver holds no state besides its configuration and is safe for
// concurrent use.
type Resolver struct {
	in  Introspector
	log zerolog.Logger
}

type ResolverOption func(*Resolver)

// WithResolverLogger traces every decision at trace level.
func WithResolverLogger(log zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

func NewResolver(in Introspector, opts ...ResolverOption) *Resolver {
	if in == nil {
		in = NewTagIntrospector()
	}
	r := &Resolver{in: in, log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Resolve returns the mode in effect at pos, or def when no annotation applies.
func (r *Resolver) Resolve(pos *Position, def models.ReferenceMode) models.ReferenceMode {
	return r.Explain(pos, def).Mode
}

// Explain is Resolve that also reports which annotation decided.
func (r *Resolver) Explain(pos *Position, def models.ReferenceMode) Decision {
	d := r.explain(pos, def)
	if e := r.log.Trace(); e.Enabled() {
		e.Str("path", pos.Path()).
			Stringer("mode", d.Mode).
			Stringer("source", d.Source).
			Int("hops", d.Hops).
			Msg("scope resolved")
	}
	return d
}

func (r *Resolver) explain(pos *Position, def models.ReferenceMode) Decision {
	hops := 0
	for cur := pos; cur != nil; cur = cur.Parent {
		if mode, source, ok := r.at(cur); ok {
			return Decision{Mode: mode, Source: source, Hops: hops}
		}
		hops++
	}
	return Decision{Mode: def, Source: SourceDefault, Hops: hops}
}

func (r *Resolver) at(pos *Position) (models.ReferenceMode, Source, bool) {
	t := pos.Type()
	if t == nil {
		return 0, SourceDefault, false
	}

	if pos.Name != "" {
		if mode, ok := r.in.FieldScope(t, pos.Name); ok {
			return mode, SourceField, true
		}
		if mode, ok := r.in.AccessorScope(t, pos.Name); ok {
			return mode, SourceAccessor, true
		}
	}

	if mode, ok := r.in.TypeScope(t); ok {
		return mode, SourceType, true
	}
	for _, ancestor := range r.in.Ancestors(t) {
		if mode, ok := r.in.TypeScope(ancestor); ok {
			return mode, SourceAncestor, true
		}
	}
	return 0, SourceDefault, false
}
