package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[string](false)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())

	_, ok := event.Last()
	assert.False(t, ok)
}

func TestChannelEvent_Listen_Notify_Basic(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("Scanning")
	event.Notify("Connecting")
	require.Len(t, ch, 2)
	assert.Equal(t, "Scanning", <-ch)
	assert.Equal(t, "Connecting", <-ch)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("Subscribed")
	assert.Len(t, ch, 0, "no value after unregister")
}

func TestChannelEvent_ReplayLast(t *testing.T) {
	event := NewChannelEvent[int](true)

	early := make(chan int, 10)
	defer event.Listen(early)()
	assert.Len(t, early, 0, "nothing to replay before the first Notify")

	event.Notify(36)
	assert.Equal(t, 36, <-early)

	late := make(chan int, 10)
	defer event.Listen(late)()
	require.Len(t, late, 1)
	assert.Equal(t, 36, <-late)

	last, ok := event.Last()
	assert.True(t, ok)
	assert.Equal(t, 36, last)
}

func TestChannelEvent_NoReplay(t *testing.T) {
	event := NewChannelEvent[string](false)
	event.Notify("first")

	ch := make(chan string, 10)
	defer event.Listen(ch)()
	assert.Len(t, ch, 0)

	event.Notify("second")
	assert.Equal(t, "second", <-ch)
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_FullChannel(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 1)
	defer event.Listen(ch)()
	ch <- "blocking"

	event.Notify("dropped1")
	event.Notify("dropped2")
	assert.Len(t, ch, 1)
	assert.Equal(t, "blocking", <-ch)

	event.Notify("delivered")
	assert.Equal(t, "delivered", <-ch)
}

func TestChannelEvent_ConcurrentAccess(t *testing.T) {
	event := NewChannelEvent[int](false)

	channels := make([]chan int, 10)
	for i := range channels {
		channels[i] = make(chan int, 100)
		defer event.Listen(channels[i])()
	}
	assert.Equal(t, 10, event.ListenerCount())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(value int) {
			defer wg.Done()
			event.Notify(value)
		}(i)
	}
	wg.Wait()

	for i, ch := range channels {
		assert.Len(t, ch, 5, "channel %d", i)
	}
}
