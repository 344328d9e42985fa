package events

// ChannelEvent provides pub/sub behavior using channels.
// Sends never block the notifier: a full channel misses that value.
type ChannelEvent[T any] struct {
	reg registry[T, chan<- T]
}

// NewChannelEvent creates a ChannelEvent. With replayLast set, a new listener
// immediately receives the most recent value if Notify has been called.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{reg: newRegistry[T, chan<- T](replayLast)}
}

// Listen registers ch and returns a function that removes it
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}
	id, last, replay := e.reg.add(ch)
	if replay {
		select {
		case ch <- last:
		default:
		}
	}
	return func() { e.reg.remove(id) }
}

// Notify sends value to every registered channel
func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.reg.record(value) {
		select {
		case ch <- value:
		default:
		}
	}
}

// Last returns the most recently notified value when replay is enabled
func (e *ChannelEvent[T]) Last() (T, bool) {
	return e.reg.lastValue()
}

func (e *ChannelEvent[T]) ListenerCount() int {
	return e.reg.count()
}
