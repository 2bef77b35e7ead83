package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const bytesInUint64 = 8

// Source is a goroutine-safe 64-bit random source seeded from crypto/rand.
// It is not meant for anything security related.
type Source struct {
	mut sync.Mutex
	rng *rand.Rand
}

// NewSource returns a PCG source seeded from crypto/rand.
func NewSource() *Source {
	seed := make([]byte, bytesInUint64*2)

	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return NewSeededSource(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	)
}

// NewSeededSource returns a deterministic source, for tests.
func NewSeededSource(seed1, seed2 uint64) *Source {
	return &Source{
		//nolint:gosec // no security required
		rng: rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *Source) Uint64() uint64 {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.rng.Uint64()
}

func (s *Source) Int64() int64 {
	return int64(s.Uint64())
}
