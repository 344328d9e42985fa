package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/ftms"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/safe_map"
)

const (
	mockMaxSpeedKph = 80
	// cadence follows speed at roughly 85 rpm for 25 km/h
	mockCadencePerKph = 85.0 / 25.0
)

// MockBike is one simulated peripheral advertising the fitness machine service
type MockBike struct {
	Identity bt.DeviceIdentity
	RSSI     int16
	// CadenceOnly bikes omit the speed field from Indoor Bike Data
	CadenceOnly bool
}

// DefaultMockBikes is a speed-reporting trainer and a cadence-only spin bike
func DefaultMockBikes() []MockBike {
	return []MockBike{
		{Identity: bt.DeviceIdentity{ID: "00:11:22:33:44:02", Name: "Mock Smart Trainer"}, RSSI: -50},
		{Identity: bt.DeviceIdentity{ID: "00:11:22:33:44:03", Name: "Mock Spin Bike"}, RSSI: -65, CadenceOnly: true},
	}
}

type MockRadioConfig struct {
	Bikes []MockBike
	// NotifyInterval between Indoor Bike Data notifications
	NotifyInterval time.Duration
	// Latency delays every asynchronous result, like a real adapter
	Latency         time.Duration
	StartSpeedKph   float64
	StartCadenceRpm float64
}

func DefaultMockRadioConfig() MockRadioConfig {
	return MockRadioConfig{
		Bikes:           DefaultMockBikes(),
		NotifyInterval:  time.Second,
		Latency:         300 * time.Millisecond,
		StartSpeedKph:   25,
		StartCadenceRpm: 85,
	}
}

// MockRadio implements bt.Radio without Bluetooth hardware. Results arrive
// on the sink from its own goroutines, the same way the adapter reports them.
type MockRadio struct {
	logger logging.Logger
	config MockRadioConfig

	mu         sync.RWMutex
	sink       bt.EventSink
	scanning   bool
	speedKph   float64
	cadenceRpm float64
	silent     bool

	connected *safe_map.SafeMap[string, MockBike]
	streams   *safe_map.SafeMap[string, context.CancelFunc]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ bt.Radio = (*MockRadio)(nil)

func NewMockRadio(logger logging.Logger, config MockRadioConfig) *MockRadio {
	if logger == nil {
		panic("MockRadio: logger cannot be nil")
	}
	if config.NotifyInterval <= 0 {
		config.NotifyInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MockRadio{
		logger:     logger,
		config:     config,
		speedKph:   config.StartSpeedKph,
		cadenceRpm: config.StartCadenceRpm,
		connected:  safe_map.NewSafeMap[string, MockBike](),
		streams:    safe_map.NewSafeMap[string, context.CancelFunc](),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// later runs fn after the configured latency unless the radio shuts down
func (m *MockRadio) later(fn func()) {
	m.wg.Add(1)
	go_func_utils.SafeGo(m.logger, func() {
		defer m.wg.Done()
		if m.config.Latency > 0 {
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.config.Latency):
			}
		}
		if m.ctx.Err() != nil {
			return
		}
		fn()
	})
}

func (m *MockRadio) post(ev bt.Event) {
	m.mu.RLock()
	sink := m.sink
	m.mu.RUnlock()
	if sink != nil {
		sink(ev)
	}
}

func (m *MockRadio) bike(id string) (MockBike, bool) {
	for _, b := range m.config.Bikes {
		if b.Identity.ID == id {
			return b, true
		}
	}
	return MockBike{}, false
}

func (m *MockRadio) Start(sink bt.EventSink) error {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
	m.logger.Printf("MockRadio: Enabling with %d simulated bikes", len(m.config.Bikes))
	m.later(func() { m.post(bt.PowerChanged{On: true}) })
	return nil
}

func (m *MockRadio) StartScan() error {
	m.mu.Lock()
	m.scanning = true
	m.mu.Unlock()
	m.logger.Printf("MockRadio: Starting scan")

	m.later(func() {
		for _, b := range m.config.Bikes {
			if !m.IsScanning() {
				return
			}
			if _, busy := m.connected.Load(b.Identity.ID); busy {
				continue
			}
			m.logger.Printf("MockRadio: Found device: %s [RSSI: %d]", b.Identity, b.RSSI)
			m.post(bt.Discovered{Device: b.Identity, RSSI: b.RSSI})
		}
	})
	return nil
}

func (m *MockRadio) StopScan() error {
	m.mu.Lock()
	m.scanning = false
	m.mu.Unlock()
	m.logger.Printf("MockRadio: Stopping scan")
	return nil
}

func (m *MockRadio) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

func (m *MockRadio) Connect(device bt.DeviceIdentity) error {
	b, ok := m.bike(device.ID)
	if !ok {
		return fmt.Errorf("unknown device: %s", device.ID)
	}
	m.logger.Printf("MockRadio: Connecting to %s", b.Identity)
	m.later(func() {
		m.connected.Store(b.Identity.ID, b)
		m.post(bt.Connected{Device: b.Identity})
	})
	return nil
}

func (m *MockRadio) Subscribe(device bt.DeviceIdentity) error {
	b, ok := m.connected.Load(device.ID)
	if !ok {
		return fmt.Errorf("device not connected: %s", device.ID)
	}
	m.later(func() {
		m.startNotifications(b)
		m.post(bt.Subscribed{Device: b.Identity})
	})
	return nil
}

func (m *MockRadio) Disconnect(device bt.DeviceIdentity) error {
	if _, ok := m.connected.Load(device.ID); !ok {
		return nil
	}
	m.logger.Printf("MockRadio: Disconnecting from %s", device)
	m.later(func() { m.drop(device, "disconnected by host") })
	return nil
}

// DropLink simulates the bike going out of range
func (m *MockRadio) DropLink(id string) {
	b, ok := m.connected.Load(id)
	if !ok {
		return
	}
	m.drop(b.Identity, "link lost")
}

func (m *MockRadio) drop(device bt.DeviceIdentity, reason string) {
	m.stopNotifications(device.ID)
	m.connected.Delete(device.ID)
	m.post(bt.Disconnected{Device: device, Reason: reason})
}

// startNotifications starts the periodic Indoor Bike Data sender for b
func (m *MockRadio) startNotifications(b MockBike) {
	m.stopNotifications(b.Identity.ID)
	ctx, cancel := context.WithCancel(m.ctx)
	m.streams.Store(b.Identity.ID, cancel)

	m.wg.Add(1)
	go_func_utils.SafeGo(m.logger, func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.NotifyInterval)
		defer ticker.Stop()

		m.logger.Printf("MockRadio: Started sending notifications for %s", b.Identity)
		for {
			select {
			case <-ctx.Done():
				m.logger.Printf("MockRadio: Stopped sending notifications for %s", b.Identity)
				return
			case <-ticker.C:
				if data, ok := m.frame(b); ok {
					m.post(bt.CharacteristicUpdated{Device: b.Identity, Data: data})
				}
			}
		}
	})
}

func (m *MockRadio) stopNotifications(id string) {
	if cancel, ok := m.streams.Load(id); ok {
		cancel()
		m.streams.Delete(id)
	}
}

// frame encodes the current simulated reading; false while the sensor is
// silenced
func (m *MockRadio) frame(b MockBike) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.silent {
		return nil, false
	}
	if b.CadenceOnly {
		return ftms.EncodeCadenceOnly(m.cadenceRpm), true
	}
	return ftms.EncodeSpeedCadence(m.speedKph, m.cadenceRpm), true
}

// AdjustSpeed changes the simulated speed and derives cadence from it
func (m *MockRadio) AdjustSpeed(deltaKph float64) {
	m.mu.Lock()
	m.speedKph = min(max(m.speedKph+deltaKph, 0), mockMaxSpeedKph)
	m.cadenceRpm = m.speedKph * mockCadencePerKph
	speed, cadence := m.speedKph, m.cadenceRpm
	m.mu.Unlock()
	m.logger.Printf("MockRadio: speed %.1f km/h, cadence %.0f rpm", speed, cadence)
}

// ToggleSilence stops or restarts notifications without dropping the link
func (m *MockRadio) ToggleSilence() {
	m.mu.Lock()
	m.silent = !m.silent
	silent := m.silent
	m.mu.Unlock()
	m.logger.Printf("MockRadio: sensor silent=%t", silent)
}

func (m *MockRadio) Reading() (speedKph, cadenceRpm float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.speedKph, m.cadenceRpm
}

func (m *MockRadio) Shutdown() {
	m.logger.Printf("MockRadio: Shutting down")
	m.cancel()
	m.wg.Wait()
	m.connected.Clear()
	m.streams.Clear()
	m.logger.Printf("MockRadio: Shutdown complete")
}
