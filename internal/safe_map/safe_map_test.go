package safe_map

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMap_StoreLoadDelete(t *testing.T) {
	m := NewSafeMap[string, int]()

	_, ok := m.Load("missing")
	assert.False(t, ok)

	m.Store("a", 1)
	m.Store("b", 2)
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, m.Len())

	m.Delete("a")
	_, ok = m.Load("a")
	assert.False(t, ok)

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_ConcurrentAccess(t *testing.T) {
	m := NewSafeMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Store(n, n*n)
			m.Load(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, m.Len())
}

func TestSafeMap_Values(t *testing.T) {
	m := NewSafeMap[string, int]()
	assert.Empty(t, m.Values())

	m.Store("a", 1)
	m.Store("b", 2)
	assert.ElementsMatch(t, []int{1, 2}, m.Values())
}
