package telemetry

import (
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/ftms"
)

// LiveMetrics is the latest reading from the bound bike. It is written by
// the supervisor (on notifications) and the watchdog (on silence) and read
// by the session engine.
type LiveMetrics struct {
	SpeedKph   float64
	CadenceRpm float64
	// HasSpeedReading latches once any frame carried a speed field
	HasSpeedReading bool
	LastUpdate      time.Time
	// CadenceChangedAt is the last time the reported cadence differed from
	// the previous report
	CadenceChangedAt time.Time

	lastReportedCadence float64
	hasReportedCadence  bool
}

// Apply folds one decoded frame into the metrics
func (m *LiveMetrics) Apply(frame ftms.Frame, now time.Time) {
	m.LastUpdate = now
	if speed, ok := frame.Speed(); ok {
		m.SpeedKph = speed
		m.HasSpeedReading = true
	}
	if cadence, ok := frame.Cadence(); ok {
		if !m.hasReportedCadence || cadence != m.lastReportedCadence {
			m.CadenceChangedAt = now
		}
		m.lastReportedCadence = cadence
		m.hasReportedCadence = true
		m.CadenceRpm = cadence
	}
}

// Reset clears everything, used when the binding is lost
func (m *LiveMetrics) Reset() {
	*m = LiveMetrics{}
}

// Silence returns how long it has been since the last notification
func (m *LiveMetrics) Silence(now time.Time) (time.Duration, bool) {
	if m.LastUpdate.IsZero() {
		return 0, false
	}
	return now.Sub(m.LastUpdate), true
}
