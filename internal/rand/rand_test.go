package rand

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededSource_deterministic(t *testing.T) {
	a := NewSeededSource(1, 2)
	b := NewSeededSource(1, 2)

	for range 16 {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestSource_concurrent(t *testing.T) {
	src := NewSource()

	var wg sync.WaitGroup
	seen := make(chan uint64, 800)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				seen <- src.Uint64()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[uint64]struct{}{}
	for v := range seen {
		unique[v] = struct{}{}
	}
	assert.Len(t, unique, 800)
}

func BenchmarkSource_Int64(b *testing.B) {
	src := NewSource()
	for i := 0; i < b.N; i++ {
		src.Int64()
	}
}
