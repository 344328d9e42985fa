package bt

// Event is a radio callback marshaled onto the engine goroutine. The set of
// implementations is closed.
type Event interface {
	isEvent()
}

// EventSink receives radio events; it may be called from any goroutine
type EventSink func(Event)

type PowerChanged struct {
	On     bool
	Reason string
}

type Discovered struct {
	Device DeviceIdentity
	RSSI   int16
}

// ScanFailed is posted when the adapter could not scan
type ScanFailed struct {
	Err error
}

type Connected struct {
	Device DeviceIdentity
}

type ConnectFailed struct {
	Device DeviceIdentity
	Err    error
}

type Subscribed struct {
	Device DeviceIdentity
}

type SubscribeFailed struct {
	Device DeviceIdentity
	Err    error
}

type Disconnected struct {
	Device DeviceIdentity
	Reason string
}

type CharacteristicUpdated struct {
	Device DeviceIdentity
	Data   []byte
}

func (PowerChanged) isEvent()          {}
func (Discovered) isEvent()            {}
func (ScanFailed) isEvent()            {}
func (Connected) isEvent()             {}
func (ConnectFailed) isEvent()         {}
func (Subscribed) isEvent()            {}
func (SubscribeFailed) isEvent()       {}
func (Disconnected) isEvent()          {}
func (CharacteristicUpdated) isEvent() {}
