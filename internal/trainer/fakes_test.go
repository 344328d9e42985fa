package trainer

import (
	"context"
	"errors"
	"sync"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
)

// stubRadio records calls; tests post events to the engine by hand
type stubRadio struct {
	mu    sync.Mutex
	calls []string
}

func (r *stubRadio) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

func (r *stubRadio) Start(bt.EventSink) error             { return r.record("start") }
func (r *stubRadio) StartScan() error                     { return r.record("scan") }
func (r *stubRadio) StopScan() error                      { return r.record("stopscan") }
func (r *stubRadio) Connect(d bt.DeviceIdentity) error    { return r.record("connect:" + d.ID) }
func (r *stubRadio) Subscribe(d bt.DeviceIdentity) error  { return r.record("subscribe:" + d.ID) }
func (r *stubRadio) Disconnect(d bt.DeviceIdentity) error { return r.record("disconnect:" + d.ID) }
func (r *stubRadio) Shutdown()                            { _ = r.record("shutdown") }

func (r *stubRadio) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

type memoryIdentityStore struct {
	mu     sync.Mutex
	device bt.DeviceIdentity
}

func (s *memoryIdentityStore) LoadIdentity() (bt.DeviceIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device, !s.device.IsZero(), nil
}

func (s *memoryIdentityStore) SaveIdentity(d bt.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = d
	return nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []history.WorkoutRecord
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, rec history.WorkoutRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) all() []history.WorkoutRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.WorkoutRecord, len(r.records))
	copy(out, r.records)
	return out
}

var errDiskFull = errors.New("disk full")

var testBike = bt.DeviceIdentity{ID: "AA:BB:CC:DD:EE:01", Name: "Test Bike"}
