// Package idgen mints business ids.
//
// An id combines the wall clock and a random draw. Each is folded from 64 to 32
// bits by XORing its high half into its low half, and the folded time becomes the
// high 32 bits of the id. Ids minted by independent generators rarely collide, but
// uniqueness is statistical, not guaranteed; rely on a unique index in storage for
// anything stronger.
package idgen

import (
	"time"

	"github.com/bizref/bizref/internal/rand"
	"github.com/bizref/bizref/pkg/models"
)

// Source supplies random 64-bit values.
type Source interface {
	Int64() int64
}

// Generator mints ids. The zero value is not usable; use NewGenerator.
type Generator struct {
	now    func() time.Time
	source Source
}

type Option func(*Generator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithSource replaces the random source.
func WithSource(src Source) Option {
	return func(g *Generator) {
		g.source = src
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		source: rand.NewSource(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Next mints an id. It is safe to call concurrently.
func (g *Generator) Next() models.ID {
	return Combine(g.now().UnixMilli(), g.source.Int64())
}

// New mints an id owned by T.
func New[T any](g *Generator) models.BusinessID[T] {
	return models.BusinessID[T](g.Next())
}

// Combine folds millis and random into an id.
func Combine(millis, random int64) models.ID {
	return models.ID(uint64(fold(millis))<<32 + uint64(fold(random)))
}

func fold(v int64) uint32 {
	u := uint64(v)
	return uint32(u ^ (u >> 32))
}
