package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallbackEvent(t *testing.T) {
	event := NewCallbackEvent[string](true)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestCallbackEvent_NotifyInOrder(t *testing.T) {
	event := NewCallbackEvent[int](false)

	var received []int
	unregister := event.Listen(func(v int) { received = append(received, v) })

	event.Notify(1)
	event.Notify(2)
	event.Notify(3)
	assert.Equal(t, []int{1, 2, 3}, received)

	unregister()
	event.Notify(4)
	assert.Equal(t, []int{1, 2, 3}, received)
}

func TestCallbackEvent_ReplayLast(t *testing.T) {
	event := NewCallbackEvent[string](true)

	var first []string
	defer event.Listen(func(v string) { first = append(first, v) })()
	assert.Empty(t, first)

	event.Notify("Subscribed")

	var late []string
	defer event.Listen(func(v string) { late = append(late, v) })()
	assert.Equal(t, []string{"Subscribed"}, late)
	assert.Equal(t, []string{"Subscribed"}, first)
}

func TestCallbackEvent_Listen_NilCallback(t *testing.T) {
	event := NewCallbackEvent[int](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestCallbackEvent_UnregisterDuringNotify(t *testing.T) {
	event := NewCallbackEvent[int](false)

	calls := 0
	var unregister func()
	unregister = event.Listen(func(int) {
		calls++
		unregister()
	})

	event.Notify(1)
	event.Notify(2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestCallbackEvent_ComplexType(t *testing.T) {
	type status struct {
		State     string
		LastError string
	}
	event := NewCallbackEvent[status](true)
	event.Notify(status{State: "Failed", LastError: "bluetooth powered off"})

	var got status
	defer event.Listen(func(s status) { got = s })()
	assert.Equal(t, "Failed", got.State)
	assert.Equal(t, "bluetooth powered off", got.LastError)
}

func TestCallbackEvent_ConcurrentNotify(t *testing.T) {
	event := NewCallbackEvent[int](false)

	var mu sync.Mutex
	total := 0
	defer event.Listen(func(v int) {
		mu.Lock()
		total += v
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 55, total)
}
