package events

// CallbackEvent provides pub/sub behavior with callbacks invoked synchronously
// on the notifying goroutine. The engine uses it for observers that must see
// every state change in order.
type CallbackEvent[T any] struct {
	reg registry[T, func(T)]
}

func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{reg: newRegistry[T, func(T)](replayLast)}
}

// Listen registers callback and returns a function that removes it.
// With replay enabled the callback is invoked with the last value before Listen returns.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}
	id, last, replay := e.reg.add(callback)
	if replay {
		callback(last)
	}
	return func() { e.reg.remove(id) }
}

// Notify calls every listener outside the registry lock
func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.reg.record(value) {
		callback(value)
	}
}

func (e *CallbackEvent[T]) Last() (T, bool) {
	return e.reg.lastValue()
}

func (e *CallbackEvent[T]) ListenerCount() int {
	return e.reg.count()
}
