package bt

import (
	"errors"
	"fmt"
)

type fakeRadio struct {
	calls        []string
	sink         EventSink
	scanErr      error
	connectErr   error
	subscribeErr error
	disconnErr   error
}

func (r *fakeRadio) Start(sink EventSink) error {
	r.sink = sink
	r.calls = append(r.calls, "start")
	return nil
}

func (r *fakeRadio) StartScan() error {
	r.calls = append(r.calls, "scan")
	return r.scanErr
}

func (r *fakeRadio) StopScan() error {
	r.calls = append(r.calls, "stopscan")
	return nil
}

func (r *fakeRadio) Connect(d DeviceIdentity) error {
	r.calls = append(r.calls, "connect:"+d.ID)
	return r.connectErr
}

func (r *fakeRadio) Subscribe(d DeviceIdentity) error {
	r.calls = append(r.calls, "subscribe:"+d.ID)
	return r.subscribeErr
}

func (r *fakeRadio) Disconnect(d DeviceIdentity) error {
	r.calls = append(r.calls, "disconnect:"+d.ID)
	return r.disconnErr
}

func (r *fakeRadio) Shutdown() {
	r.calls = append(r.calls, "shutdown")
}

func (r *fakeRadio) last() string {
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

func (r *fakeRadio) reset() {
	r.calls = nil
}

type memoryStore struct {
	device  DeviceIdentity
	saved   []DeviceIdentity
	loadErr error
	saveErr error
}

func (s *memoryStore) LoadIdentity() (DeviceIdentity, bool, error) {
	if s.loadErr != nil {
		return DeviceIdentity{}, false, s.loadErr
	}
	return s.device, !s.device.IsZero(), nil
}

func (s *memoryStore) SaveIdentity(d DeviceIdentity) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.device = d
	s.saved = append(s.saved, d)
	return nil
}

var errRadio = errors.New("radio busy")

func bike(n int) DeviceIdentity {
	return DeviceIdentity{ID: fmt.Sprintf("AA:BB:CC:DD:EE:%02X", n), Name: fmt.Sprintf("Bike %d", n)}
}
