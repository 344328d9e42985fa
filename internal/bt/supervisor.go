// Package bt binds to a single FTMS indoor bike over Bluetooth LE and keeps
// that binding alive.
package bt

import (
	"fmt"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/events"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/ftms"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/telemetry"
)

const (
	DefaultKnownDeviceGrace = 3 * time.Second
	DefaultRetryInterval    = 5 * time.Second

	reasonPoweredOff = "bluetooth powered off"
)

type Options struct {
	// KnownDeviceGrace is how long a scan waits for the remembered device
	// before settling for another bike. Zero connects to the first bike seen.
	KnownDeviceGrace time.Duration
	// RetryInterval spaces automatic recovery attempts out of Failed while
	// the radio is powered
	RetryInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		KnownDeviceGrace: DefaultKnownDeviceGrace,
		RetryInterval:    DefaultRetryInterval,
	}
}

// Status is what observers see after every transition
type Status struct {
	State       ConnectionState
	LastError   string
	KnownDevice DeviceIdentity
	Powered     bool
}

// Supervisor is the connection state machine. It is not safe for concurrent
// use: radio events reach it through Handle on the engine goroutine.
type Supervisor struct {
	logger logging.Logger
	radio  Radio
	store  IdentityStore
	opts   Options

	state          ConnectionState
	powered        bool
	known          DeviceIdentity
	lastError      string
	failedAt       time.Time
	userDisconnect bool

	candidate      DeviceIdentity
	candidateSince time.Time

	metrics telemetry.LiveMetrics

	statusEvent  *events.CallbackEvent[Status]
	metricsEvent *events.CallbackEvent[telemetry.LiveMetrics]
}

func NewSupervisor(logger logging.Logger, radio Radio, store IdentityStore, opts Options) *Supervisor {
	if logger == nil {
		panic("Supervisor: logger cannot be nil")
	}
	if radio == nil {
		panic("Supervisor: radio cannot be nil")
	}
	if store == nil {
		panic("Supervisor: store cannot be nil")
	}
	if opts.KnownDeviceGrace < 0 {
		opts.KnownDeviceGrace = 0
	}
	return &Supervisor{
		logger:       logger,
		radio:        radio,
		store:        store,
		opts:         opts,
		state:        Idle(),
		statusEvent:  events.NewCallbackEvent[Status](true),
		metricsEvent: events.NewCallbackEvent[telemetry.LiveMetrics](true),
	}
}

// Start reads the remembered device. The radio reports power separately.
func (s *Supervisor) Start() {
	device, ok, err := s.store.LoadIdentity()
	switch {
	case err != nil:
		s.logger.Printf("Supervisor: could not load known device: %v", err)
	case ok && !device.IsZero():
		s.known = device
		s.logger.Printf("Supervisor: known device %s", device)
	default:
		s.logger.Printf("Supervisor: no known device")
	}
	s.publish()
}

func (s *Supervisor) State() ConnectionState { return s.state }

func (s *Supervisor) Status() Status {
	return Status{
		State:       s.state,
		LastError:   s.lastError,
		KnownDevice: s.known,
		Powered:     s.powered,
	}
}

func (s *Supervisor) Metrics() telemetry.LiveMetrics { return s.metrics }

// ListenStatus registers fn for every status change; fn runs on the
// engine goroutine
func (s *Supervisor) ListenStatus(fn func(Status)) func() {
	return s.statusEvent.Listen(fn)
}

func (s *Supervisor) ListenMetrics(fn func(telemetry.LiveMetrics)) func() {
	return s.metricsEvent.Listen(fn)
}

// Handle applies one radio event
func (s *Supervisor) Handle(ev Event, now time.Time) {
	switch e := ev.(type) {
	case PowerChanged:
		s.onPower(e, now)
	case ScanFailed:
		if s.state.Kind == StateScanning {
			s.fail(fmt.Sprintf("scan failed: %v", e.Err), now)
		}
	case Discovered:
		s.onDiscovered(e.Device, now)
	case Connected:
		s.onConnected(e.Device, now)
	case ConnectFailed:
		if s.state.Kind != StateConnecting || s.state.Device.ID != e.Device.ID {
			s.logger.Printf("Supervisor: ignoring stale connect failure for %s", e.Device)
			return
		}
		s.lastError = fmt.Sprintf("connect to %s: %v", e.Device, e.Err)
		s.logger.Printf("Supervisor: %s", s.lastError)
		s.startScan(now)
	case Subscribed:
		if s.state.Kind != StateDiscoveringServices || s.state.Device.ID != e.Device.ID {
			return
		}
		s.lastError = ""
		s.setState(ConnectionState{Kind: StateSubscribed, Device: s.state.Device})
	case SubscribeFailed:
		if s.state.Kind != StateDiscoveringServices || s.state.Device.ID != e.Device.ID {
			return
		}
		s.subscribeFailed(s.state.Device, e.Err, now)
	case Disconnected:
		s.onDisconnected(e, now)
	case CharacteristicUpdated:
		s.onNotification(e, now)
	default:
		s.logger.Printf("Supervisor: unknown event %T", ev)
	}
}

// Tick drives the time-based parts of the policy: giving up on the known
// device after the grace period and retrying out of Failed
func (s *Supervisor) Tick(now time.Time) {
	switch s.state.Kind {
	case StateScanning:
		if !s.candidate.IsZero() && now.Sub(s.candidateSince) >= s.opts.KnownDeviceGrace {
			s.logger.Printf("Supervisor: %s not seen within %v, using %s", s.known, s.opts.KnownDeviceGrace, s.candidate)
			s.connect(s.candidate, now)
		}
	case StateFailed:
		if s.powered && s.opts.RetryInterval > 0 && now.Sub(s.failedAt) >= s.opts.RetryInterval {
			s.logger.Printf("Supervisor: retrying after %q", s.state.Reason)
			s.startDiscovery(now)
		}
	}
}

// Watch runs the stale-data watchdog over the live metrics
func (s *Supervisor) Watch(now time.Time, wd *telemetry.Watchdog) bool {
	if !wd.Evaluate(now, &s.metrics, s.state.Kind == StateSubscribed) {
		return false
	}
	s.metricsEvent.Notify(s.metrics)
	return true
}

// Reconnect restarts discovery. It does nothing unless the radio is on and
// the supervisor is idle or failed.
func (s *Supervisor) Reconnect(now time.Time) bool {
	if !s.powered {
		s.logger.Printf("Supervisor: reconnect ignored, radio is off")
		return false
	}
	if s.state.Kind != StateIdle && s.state.Kind != StateFailed {
		s.logger.Printf("Supervisor: reconnect ignored in %s", s.state)
		return false
	}
	s.startDiscovery(now)
	return true
}

// Disconnect drops the current binding. Scanning resumes once the radio
// reports the link gone; a pending connect attempt is abandoned at once.
func (s *Supervisor) Disconnect(now time.Time) bool {
	device := s.state.Device
	switch s.state.Kind {
	case StateConnecting:
		s.logger.Printf("Supervisor: abandoning connect to %s", device)
		if err := s.radio.Disconnect(device); err != nil {
			s.logger.Printf("Supervisor: cancel connect to %s: %v", device, err)
		}
		s.lastError = ""
		s.lose(device, now)
		return true
	case StateDiscoveringServices, StateSubscribed:
		s.logger.Printf("Supervisor: disconnecting from %s", device)
		s.userDisconnect = true
		if err := s.radio.Disconnect(device); err != nil {
			s.userDisconnect = false
			s.lastError = fmt.Sprintf("disconnect from %s: %v", device, err)
			s.logger.Printf("Supervisor: %s", s.lastError)
			s.lose(device, now)
		}
		return true
	default:
		s.logger.Printf("Supervisor: nothing to disconnect in %s", s.state)
		return false
	}
}

// Shutdown releases the radio and returns to Idle
func (s *Supervisor) Shutdown() {
	switch {
	case s.state.Kind == StateScanning:
		if err := s.radio.StopScan(); err != nil {
			s.logger.Printf("Supervisor: stop scan: %v", err)
		}
	case s.state.Bound():
		if err := s.radio.Disconnect(s.state.Device); err != nil {
			s.logger.Printf("Supervisor: disconnect from %s: %v", s.state.Device, err)
		}
	}
	s.clearCandidate()
	s.resetMetrics()
	s.setState(Idle())
}

func (s *Supervisor) onPower(e PowerChanged, now time.Time) {
	if e.On {
		s.powered = true
		s.logger.Printf("Supervisor: radio powered on")
		switch s.state.Kind {
		case StateIdle, StateFailed, StateDisconnected:
			s.startDiscovery(now)
		}
		return
	}

	s.powered = false
	s.logger.Printf("Supervisor: radio powered off %s", e.Reason)
	s.clearCandidate()
	s.resetMetrics()
	s.fail(reasonPoweredOff, now)
	if e.Reason != "" {
		s.lastError = e.Reason
		s.publish()
	}
}

func (s *Supervisor) onDiscovered(device DeviceIdentity, now time.Time) {
	if s.state.Kind != StateScanning || device.IsZero() {
		return
	}
	switch {
	case s.known.IsZero():
		s.logger.Printf("Supervisor: found %s", device)
		s.connect(device, now)
	case device.ID == s.known.ID:
		if device.Name == "" {
			device.Name = s.known.Name
		}
		s.logger.Printf("Supervisor: found known device %s", device)
		s.connect(device, now)
	case s.opts.KnownDeviceGrace == 0:
		s.logger.Printf("Supervisor: found %s", device)
		s.connect(device, now)
	case s.candidate.IsZero():
		s.logger.Printf("Supervisor: holding %s while waiting for %s", device, s.known)
		s.candidate = device
		s.candidateSince = now
	}
}

func (s *Supervisor) onConnected(device DeviceIdentity, now time.Time) {
	if s.state.Kind != StateConnecting || s.state.Device.ID != device.ID {
		s.logger.Printf("Supervisor: dropping stale connection to %s in %s", device, s.state)
		if err := s.radio.Disconnect(device); err != nil {
			s.logger.Printf("Supervisor: disconnect stale %s: %v", device, err)
		}
		return
	}
	if device.Name == "" {
		device.Name = s.state.Device.Name
	}

	s.known = device
	if err := s.store.SaveIdentity(device); err != nil {
		s.logger.Printf("Supervisor: could not save known device: %v", err)
	}

	s.setState(ConnectionState{Kind: StateDiscoveringServices, Device: device})
	if err := s.radio.Subscribe(device); err != nil {
		s.subscribeFailed(device, err, now)
	}
}

func (s *Supervisor) subscribeFailed(device DeviceIdentity, err error, now time.Time) {
	s.lastError = fmt.Sprintf("subscribe to %s: %v", device, err)
	s.logger.Printf("Supervisor: %s", s.lastError)
	if derr := s.radio.Disconnect(device); derr != nil {
		s.logger.Printf("Supervisor: disconnect from %s: %v", device, derr)
	}
	s.lose(device, now)
}

func (s *Supervisor) onDisconnected(e Disconnected, now time.Time) {
	if !s.state.Bound() || s.state.Device.ID != e.Device.ID {
		return
	}
	if s.userDisconnect {
		s.lastError = ""
		s.logger.Printf("Supervisor: disconnected from %s", e.Device)
	} else {
		reason := e.Reason
		if reason == "" {
			reason = "connection lost"
		}
		s.lastError = fmt.Sprintf("%s: %s", e.Device, reason)
		s.logger.Printf("Supervisor: lost %s", s.lastError)
	}
	s.lose(s.state.Device, now)
}

func (s *Supervisor) onNotification(e CharacteristicUpdated, now time.Time) {
	switch s.state.Kind {
	case StateDiscoveringServices, StateSubscribed:
	default:
		return
	}
	if s.state.Device.ID != e.Device.ID {
		return
	}
	frame, err := ftms.Decode(e.Data)
	if err != nil {
		s.logger.Printf("Supervisor: dropping frame % x: %v", e.Data, err)
		return
	}
	s.metrics.Apply(frame, now)
	s.metricsEvent.Notify(s.metrics)
}

// lose passes through Disconnected and straight back to scanning
func (s *Supervisor) lose(device DeviceIdentity, now time.Time) {
	s.userDisconnect = false
	s.resetMetrics()
	s.setState(ConnectionState{Kind: StateDisconnected, Device: device})
	if s.powered {
		s.startScan(now)
	}
}

func (s *Supervisor) startDiscovery(now time.Time) {
	if !s.known.IsZero() {
		s.logger.Printf("Supervisor: reconnecting to known device %s", s.known)
		s.connect(s.known, now)
		return
	}
	s.startScan(now)
}

func (s *Supervisor) startScan(now time.Time) {
	s.clearCandidate()
	s.setState(Scanning())
	if err := s.radio.StartScan(); err != nil {
		s.fail(fmt.Sprintf("scan failed: %v", err), now)
	}
}

func (s *Supervisor) connect(device DeviceIdentity, now time.Time) {
	if s.state.Kind == StateScanning {
		if err := s.radio.StopScan(); err != nil {
			s.logger.Printf("Supervisor: stop scan: %v", err)
		}
	}
	s.clearCandidate()
	s.userDisconnect = false
	s.setState(ConnectingTo(device))
	if err := s.radio.Connect(device); err != nil {
		s.lastError = fmt.Sprintf("connect to %s: %v", device, err)
		s.logger.Printf("Supervisor: %s", s.lastError)
		s.startScan(now)
	}
}

func (s *Supervisor) fail(reason string, now time.Time) {
	s.lastError = reason
	s.failedAt = now
	s.setState(FailedWith(reason))
}

func (s *Supervisor) clearCandidate() {
	s.candidate = DeviceIdentity{}
	s.candidateSince = time.Time{}
}

func (s *Supervisor) resetMetrics() {
	s.metrics.Reset()
	s.metricsEvent.Notify(s.metrics)
}

func (s *Supervisor) setState(state ConnectionState) {
	if s.state != state {
		s.logger.Printf("Supervisor: %s -> %s", s.state, state)
	}
	s.state = state
	s.publish()
}

func (s *Supervisor) publish() {
	s.statusEvent.Notify(s.Status())
}
