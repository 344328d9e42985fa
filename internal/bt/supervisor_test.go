package bt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/ftms"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/telemetry"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	sup      *Supervisor
	radio    *fakeRadio
	store    *memoryStore
	logger   *logging.Recorder
	statuses []Status
}

func newHarness(t *testing.T, known DeviceIdentity) *harness {
	t.Helper()
	h := &harness{
		radio:  &fakeRadio{},
		store:  &memoryStore{device: known},
		logger: logging.NewRecorder(),
	}
	h.sup = NewSupervisor(h.logger, h.radio, h.store, DefaultOptions())
	h.sup.ListenStatus(func(s Status) { h.statuses = append(h.statuses, s) })
	h.sup.Start()
	return h
}

func (h *harness) kinds() []StateKind {
	var out []StateKind
	for _, s := range h.statuses {
		if len(out) == 0 || out[len(out)-1] != s.State.Kind {
			out = append(out, s.State.Kind)
		}
	}
	return out
}

// bind drives a fresh supervisor all the way to Subscribed on device
func (h *harness) bind(t *testing.T, device DeviceIdentity) {
	t.Helper()
	h.sup.Handle(PowerChanged{On: true}, t0)
	if h.sup.State().Kind == StateScanning {
		h.sup.Handle(Discovered{Device: device}, t0)
	}
	require.Equal(t, StateConnecting, h.sup.State().Kind)
	h.sup.Handle(Connected{Device: device}, t0)
	h.sup.Handle(Subscribed{Device: device}, t0)
	require.Equal(t, StateSubscribed, h.sup.State().Kind)
}

func TestSupervisor_FirstRunScansAndBinds(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	assert.Equal(t, StateIdle, h.sup.State().Kind)

	h.sup.Handle(PowerChanged{On: true}, t0)
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Equal(t, "scan", h.radio.last())

	h.sup.Handle(Discovered{Device: bike(1)}, t0)
	assert.Equal(t, ConnectingTo(bike(1)), h.sup.State())
	assert.Equal(t, []string{"scan", "stopscan", "connect:" + bike(1).ID}, h.radio.calls)

	h.sup.Handle(Connected{Device: bike(1)}, t0)
	assert.Equal(t, StateDiscoveringServices, h.sup.State().Kind)
	assert.Equal(t, []DeviceIdentity{bike(1)}, h.store.saved)
	assert.Equal(t, "subscribe:"+bike(1).ID, h.radio.last())

	h.sup.Handle(Subscribed{Device: bike(1)}, t0)
	assert.Equal(t, StateSubscribed, h.sup.State().Kind)
	assert.Equal(t, bike(1), h.sup.Status().KnownDevice)

	assert.Equal(t, []StateKind{
		StateIdle, StateScanning, StateConnecting, StateDiscoveringServices, StateSubscribed,
	}, h.kinds())
}

func TestSupervisor_FirstDiscoveredWins(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.sup.Handle(PowerChanged{On: true}, t0)
	h.sup.Handle(Discovered{Device: bike(1)}, t0)
	h.sup.Handle(Discovered{Device: bike(2)}, t0)
	assert.Equal(t, ConnectingTo(bike(1)), h.sup.State())
}

func TestSupervisor_KnownDeviceDirectReconnect(t *testing.T) {
	h := newHarness(t, bike(7))
	h.sup.Handle(PowerChanged{On: true}, t0)

	assert.Equal(t, ConnectingTo(bike(7)), h.sup.State())
	assert.Equal(t, []string{"connect:" + bike(7).ID}, h.radio.calls)
}

func TestSupervisor_KnownDeviceUnavailableFallsBackToScan(t *testing.T) {
	h := newHarness(t, bike(7))
	h.sup.Handle(PowerChanged{On: true}, t0)
	h.sup.Handle(ConnectFailed{Device: bike(7), Err: errRadio}, t0)

	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Contains(t, h.sup.Status().LastError, "radio busy")

	// the remembered bike wins over one seen earlier
	h.sup.Handle(Discovered{Device: bike(2)}, t0)
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	h.sup.Handle(Discovered{Device: DeviceIdentity{ID: bike(7).ID}}, t0.Add(time.Second))
	assert.Equal(t, ConnectingTo(bike(7)), h.sup.State(), "known name is kept when advert has none")
}

func TestSupervisor_GraceExpiresToCandidate(t *testing.T) {
	h := newHarness(t, bike(7))
	h.radio.connectErr = errRadio
	h.sup.Handle(PowerChanged{On: true}, t0)
	require.Equal(t, StateScanning, h.sup.State().Kind)
	h.radio.connectErr = nil

	h.sup.Handle(Discovered{Device: bike(2)}, t0)
	h.sup.Handle(Discovered{Device: bike(3)}, t0)
	h.sup.Tick(t0.Add(2 * time.Second))
	assert.Equal(t, StateScanning, h.sup.State().Kind)

	h.sup.Tick(t0.Add(DefaultKnownDeviceGrace))
	assert.Equal(t, ConnectingTo(bike(2)), h.sup.State())
}

func TestSupervisor_ZeroGraceConnectsImmediately(t *testing.T) {
	radio := &fakeRadio{connectErr: errRadio}
	sup := NewSupervisor(logging.NewRecorder(), radio, &memoryStore{device: bike(7)}, Options{})
	sup.Start()
	sup.Handle(PowerChanged{On: true}, t0)
	require.Equal(t, StateScanning, sup.State().Kind)
	radio.connectErr = nil

	sup.Handle(Discovered{Device: bike(2)}, t0)
	assert.Equal(t, ConnectingTo(bike(2)), sup.State())
}

func TestSupervisor_UnexpectedDisconnectRescans(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))
	h.sup.Handle(CharacteristicUpdated{Device: bike(1), Data: ftms.EncodeSpeedCadence(30, 90)}, t0)
	require.True(t, h.sup.Metrics().HasSpeedReading)
	h.statuses = nil

	h.sup.Handle(Disconnected{Device: bike(1), Reason: "supervision timeout"}, t0)

	assert.Equal(t, []StateKind{StateDisconnected, StateScanning}, h.kinds())
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Contains(t, h.sup.Status().LastError, "supervision timeout")
	assert.Equal(t, telemetry.LiveMetrics{}, h.sup.Metrics())
}

func TestSupervisor_ExplicitDisconnectWaitsForCallback(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))

	assert.True(t, h.sup.Disconnect(t0))
	assert.Equal(t, "disconnect:"+bike(1).ID, h.radio.last())
	assert.Equal(t, StateSubscribed, h.sup.State().Kind)

	h.sup.Handle(Disconnected{Device: bike(1)}, t0)
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Empty(t, h.sup.Status().LastError)
}

func TestSupervisor_DisconnectWhileConnectingAbandonsAttempt(t *testing.T) {
	h := newHarness(t, bike(7))
	h.sup.Handle(PowerChanged{On: true}, t0)
	require.Equal(t, StateConnecting, h.sup.State().Kind)

	assert.True(t, h.sup.Disconnect(t0))
	assert.Equal(t, StateScanning, h.sup.State().Kind)

	// the old attempt completes late and is torn down, not adopted
	h.radio.reset()
	h.sup.Handle(Connected{Device: bike(7)}, t0)
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Equal(t, []string{"disconnect:" + bike(7).ID}, h.radio.calls)
}

func TestSupervisor_DisconnectWithNothingBound(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	assert.False(t, h.sup.Disconnect(t0))
	h.sup.Handle(PowerChanged{On: true}, t0)
	assert.False(t, h.sup.Disconnect(t0))
	assert.Equal(t, StateScanning, h.sup.State().Kind)
}

func TestSupervisor_SubscribeFailureRescans(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.sup.Handle(PowerChanged{On: true}, t0)
	h.sup.Handle(Discovered{Device: bike(1)}, t0)
	h.sup.Handle(Connected{Device: bike(1)}, t0)
	h.sup.Handle(SubscribeFailed{Device: bike(1), Err: errRadio}, t0)

	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.Contains(t, h.radio.calls, "disconnect:"+bike(1).ID)
	assert.Contains(t, h.sup.Status().LastError, "subscribe")
}

func TestSupervisor_PowerOffFails(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))

	h.sup.Handle(PowerChanged{On: false}, t0)
	assert.Equal(t, FailedWith("bluetooth powered off"), h.sup.State())
	assert.False(t, h.sup.Status().Powered)

	// no retries while off
	h.radio.reset()
	h.sup.Tick(t0.Add(time.Minute))
	assert.False(t, h.sup.Reconnect(t0.Add(time.Minute)))
	assert.Empty(t, h.radio.calls)

	// power back: the known device is tried directly
	h.sup.Handle(PowerChanged{On: true}, t0.Add(time.Minute))
	assert.Equal(t, ConnectingTo(bike(1)), h.sup.State())
}

func TestSupervisor_ScanFailureRetries(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.radio.scanErr = errRadio
	h.sup.Handle(PowerChanged{On: true}, t0)
	require.Equal(t, StateFailed, h.sup.State().Kind)

	h.radio.scanErr = nil
	h.sup.Tick(t0.Add(time.Second))
	assert.Equal(t, StateFailed, h.sup.State().Kind)

	h.sup.Tick(t0.Add(DefaultRetryInterval))
	assert.Equal(t, StateScanning, h.sup.State().Kind)
}

func TestSupervisor_ReconnectOnlyWhenIdleOrFailed(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	assert.False(t, h.sup.Reconnect(t0), "radio off")

	h.radio.scanErr = errRadio
	h.sup.Handle(PowerChanged{On: true}, t0)
	require.Equal(t, StateFailed, h.sup.State().Kind)
	h.radio.scanErr = nil

	assert.True(t, h.sup.Reconnect(t0))
	assert.Equal(t, StateScanning, h.sup.State().Kind)
	assert.False(t, h.sup.Reconnect(t0), "already scanning")
}

func TestSupervisor_NotificationsDecoded(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	var seen []telemetry.LiveMetrics
	h.sup.ListenMetrics(func(m telemetry.LiveMetrics) { seen = append(seen, m) })
	h.bind(t, bike(1))
	seen = nil

	h.sup.Handle(CharacteristicUpdated{Device: bike(1), Data: ftms.EncodeSpeedCadence(32.5, 88)}, t0)
	m := h.sup.Metrics()
	assert.InDelta(t, 32.5, m.SpeedKph, 1e-9)
	assert.InDelta(t, 88.0, m.CadenceRpm, 1e-9)
	assert.Equal(t, t0, m.LastUpdate)
	assert.Len(t, seen, 1)
}

func TestSupervisor_MalformedFrameDropped(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))
	h.sup.Handle(CharacteristicUpdated{Device: bike(1), Data: ftms.EncodeSpeedCadence(20, 70)}, t0)
	before := h.sup.Metrics()

	h.sup.Handle(CharacteristicUpdated{Device: bike(1), Data: []byte{0x00, 0x00}}, t0.Add(time.Second))

	assert.Equal(t, before, h.sup.Metrics())
	assert.Equal(t, StateSubscribed, h.sup.State().Kind)
	assert.True(t, h.logger.Contains("dropping frame"))
}

func TestSupervisor_NotificationsFromOtherDevicesIgnored(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))
	h.sup.Handle(CharacteristicUpdated{Device: bike(2), Data: ftms.EncodeSpeedCadence(20, 70)}, t0)
	assert.False(t, h.sup.Metrics().HasSpeedReading)
}

func TestSupervisor_WatchOnlyWhileSubscribed(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	wd := telemetry.NewWatchdog(h.logger, telemetry.DefaultStaleAfter)
	h.bind(t, bike(1))
	h.sup.Handle(CharacteristicUpdated{Device: bike(1), Data: ftms.EncodeSpeedCadence(20, 70)}, t0)

	assert.False(t, h.sup.Watch(t0.Add(1900*time.Millisecond), wd))
	assert.True(t, h.sup.Watch(t0.Add(2*time.Second), wd))
	assert.Zero(t, h.sup.Metrics().SpeedKph)
}

func TestSupervisor_StaleDisconnectIgnored(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))
	h.sup.Handle(Disconnected{Device: bike(2)}, t0)
	assert.Equal(t, StateSubscribed, h.sup.State().Kind)
}

func TestSupervisor_IdentityLoadError(t *testing.T) {
	radio := &fakeRadio{}
	logger := logging.NewRecorder()
	sup := NewSupervisor(logger, radio, &memoryStore{loadErr: errRadio}, DefaultOptions())
	sup.Start()
	assert.True(t, logger.Contains("could not load known device"))

	sup.Handle(PowerChanged{On: true}, t0)
	assert.Equal(t, StateScanning, sup.State().Kind)
}

func TestSupervisor_Shutdown(t *testing.T) {
	h := newHarness(t, DeviceIdentity{})
	h.bind(t, bike(1))
	h.sup.Shutdown()
	assert.Equal(t, StateIdle, h.sup.State().Kind)
	assert.Equal(t, "disconnect:"+bike(1).ID, h.radio.last())
}

func TestNewSupervisor_PanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { NewSupervisor(nil, &fakeRadio{}, &memoryStore{}, DefaultOptions()) })
	assert.Panics(t, func() { NewSupervisor(logging.NewRecorder(), nil, &memoryStore{}, DefaultOptions()) })
	assert.Panics(t, func() { NewSupervisor(logging.NewRecorder(), &fakeRadio{}, nil, DefaultOptions()) })
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle().String())
	assert.Equal(t, "Connecting(Bike 1 AA:BB:CC:DD:EE:01)", ConnectingTo(bike(1)).String())
	assert.Equal(t, "Failed(bluetooth powered off)", FailedWith("bluetooth powered off").String())
	assert.True(t, ConnectingTo(bike(1)).Bound())
	assert.False(t, Scanning().Bound())
}
