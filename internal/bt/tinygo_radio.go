package bt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/ftms"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/safe_map"
)

var errNotConnected = errors.New("device not connected")

// TinygoRadio implements Radio on a tinygo bluetooth adapter. Blocking
// adapter calls run on their own goroutines and report back through the sink.
type TinygoRadio struct {
	adapter *bluetooth.Adapter
	logger  logging.Logger

	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID

	mu                sync.Mutex
	sink              EventSink
	scanning          bool
	scanContext       context.Context
	scanContextCancel context.CancelFunc

	// addresses seen in the current scan, by identity id
	scanned *safe_map.SafeMap[string, bluetooth.Address]
	// live links, by identity id
	connected *safe_map.SafeMap[string, *bluetooth.Device]
	// characteristics with notifications enabled, by identity id
	subscribed *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Radio = (*TinygoRadio)(nil)

func NewTinygoRadio(adapter *bluetooth.Adapter, logger logging.Logger) *TinygoRadio {
	if adapter == nil {
		panic("TinygoRadio: adapter cannot be nil")
	}
	if logger == nil {
		panic("TinygoRadio: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TinygoRadio{
		adapter:     adapter,
		logger:      logger,
		serviceUUID: bluetooth.New16BitUUID(ftms.ServiceUUID16),
		charUUID:    bluetooth.New16BitUUID(ftms.IndoorBikeDataUUID16),
		scanned:     safe_map.NewSafeMap[string, bluetooth.Address](),
		connected:   safe_map.NewSafeMap[string, *bluetooth.Device](),
		subscribed:  safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (r *TinygoRadio) post(ev Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (r *TinygoRadio) Start(sink EventSink) error {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()

	r.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		if connected {
			r.logger.Printf("TinygoRadio: link up %s", id)
			return
		}
		r.logger.Printf("TinygoRadio: link down %s", id)
		r.connected.Delete(id)
		r.subscribed.Delete(id)
		r.post(Disconnected{Device: DeviceIdentity{ID: id}, Reason: "link lost"})
	})

	if err := r.adapter.Enable(); err != nil {
		r.post(PowerChanged{On: false, Reason: err.Error()})
		return fmt.Errorf("enable adapter: %w", err)
	}
	r.post(PowerChanged{On: true})
	return nil
}

func (r *TinygoRadio) StartScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanning && r.scanContextCancel != nil {
		r.logger.Printf("TinygoRadio: scan already running, restarting")
		r.scanContextCancel()
		if err := r.adapter.StopScan(); err != nil {
			r.logger.Printf("TinygoRadio: stop scan: %v", err)
		}
	}

	r.scanned.Clear()
	r.scanning = true
	r.scanContext, r.scanContextCancel = context.WithCancel(r.ctx)
	scanCtx := r.scanContext

	r.wg.Add(1)
	go_func_utils.SafeGo(r.logger, func() {
		defer r.wg.Done()
		defer r.logger.Printf("TinygoRadio: scan loop exited")

		err := r.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			select {
			case <-scanCtx.Done():
				return
			default:
			}
			if !result.HasServiceUUID(r.serviceUUID) {
				return
			}
			id := result.Address.String()
			if _, seen := r.scanned.Load(id); seen {
				return
			}
			r.scanned.Store(id, result.Address)
			r.logger.Printf("TinygoRadio: found %s (%s) [RSSI: %d]", result.LocalName(), id, result.RSSI)
			r.post(Discovered{
				Device: DeviceIdentity{ID: id, Name: result.LocalName()},
				RSSI:   result.RSSI,
			})
		})
		if err != nil && scanCtx.Err() == nil {
			r.logger.Printf("TinygoRadio: scan error: %v", err)
			r.post(ScanFailed{Err: err})
		}
	})
	return nil
}

func (r *TinygoRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanning {
		return nil
	}
	r.scanning = false
	if r.scanContextCancel != nil {
		r.scanContextCancel()
		r.scanContextCancel = nil
	}
	return r.adapter.StopScan()
}

func (r *TinygoRadio) address(id string) (bluetooth.Address, error) {
	if addr, ok := r.scanned.Load(id); ok {
		return addr, nil
	}
	return parseAddress(id)
}

func (r *TinygoRadio) Connect(device DeviceIdentity) error {
	addr, err := r.address(device.ID)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go_func_utils.SafeGo(r.logger, func() {
		defer r.wg.Done()
		r.logger.Printf("TinygoRadio: connecting to %s", device)
		d, err := r.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			r.post(ConnectFailed{Device: device, Err: err})
			return
		}
		r.connected.Store(device.ID, &d)
		r.post(Connected{Device: device})
	})
	return nil
}

func (r *TinygoRadio) Subscribe(device DeviceIdentity) error {
	d, ok := r.connected.Load(device.ID)
	if !ok {
		return errNotConnected
	}

	r.wg.Add(1)
	go_func_utils.SafeGo(r.logger, func() {
		defer r.wg.Done()
		char, err := r.discoverIndoorBikeData(d)
		if err != nil {
			r.post(SubscribeFailed{Device: device, Err: err})
			return
		}
		err = char.EnableNotifications(func(buf []byte) {
			// the adapter reuses buf after the callback returns
			data := make([]byte, len(buf))
			copy(data, buf)
			r.post(CharacteristicUpdated{Device: device, Data: data})
		})
		if err != nil {
			r.post(SubscribeFailed{Device: device, Err: fmt.Errorf("enable notifications: %w", err)})
			return
		}
		r.subscribed.Store(device.ID, char)
		r.logger.Printf("TinygoRadio: notifications enabled on %s", device)
		r.post(Subscribed{Device: device})
	})
	return nil
}

func (r *TinygoRadio) discoverIndoorBikeData(d *bluetooth.Device) (*bluetooth.DeviceCharacteristic, error) {
	services, err := d.DiscoverServices([]bluetooth.UUID{r.serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", r.serviceUUID)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{r.charUUID})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("characteristic %s not found", r.charUUID)
	}
	return &chars[0], nil
}

func (r *TinygoRadio) Disconnect(device DeviceIdentity) error {
	d, ok := r.connected.Load(device.ID)
	if !ok {
		// a pending Connect cannot be cancelled; the supervisor drops it
		// when it completes
		return nil
	}
	if char, ok := r.subscribed.Load(device.ID); ok {
		// nil callback disables notifications
		if err := char.EnableNotifications(nil); err != nil {
			r.logger.Printf("TinygoRadio: disable notifications on %s: %v", device, err)
		}
		r.subscribed.Delete(device.ID)
	}
	return d.Disconnect()
}

// Shutdown stops scanning, drops every link and waits for adapter goroutines
func (r *TinygoRadio) Shutdown() {
	r.logger.Printf("TinygoRadio: shutting down")
	if err := r.StopScan(); err != nil {
		r.logger.Printf("TinygoRadio: stop scan: %v", err)
	}
	for _, d := range r.connected.Values() {
		if err := d.Disconnect(); err != nil {
			r.logger.Printf("TinygoRadio: disconnect %s: %v", d.Address.String(), err)
		}
	}
	r.connected.Clear()
	r.subscribed.Clear()
	r.cancel()
	r.wg.Wait()
	r.logger.Printf("TinygoRadio: shutdown complete")
}
