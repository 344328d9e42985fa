package bt

// Radio is the hardware side of the supervisor. Every call returns quickly;
// outcomes arrive later as events on the sink passed to Start.
type Radio interface {
	// Start powers the adapter and posts PowerChanged
	Start(sink EventSink) error
	// StartScan posts Discovered for each peripheral advertising the
	// fitness machine service, once per peripheral per scan
	StartScan() error
	StopScan() error
	// Connect posts Connected or ConnectFailed
	Connect(device DeviceIdentity) error
	// Subscribe discovers the indoor bike data characteristic, enables
	// notifications and posts Subscribed or SubscribeFailed. Notifications
	// arrive as CharacteristicUpdated.
	Subscribe(device DeviceIdentity) error
	// Disconnect tears down the link; the radio posts Disconnected when the
	// link is gone
	Disconnect(device DeviceIdentity) error
	Shutdown()
}
