package telemetry

import (
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

const (
	DefaultStaleAfter = 2 * time.Second
	WatchdogInterval  = time.Second
)

// Watchdog zeroes metrics that a silent or stuck sensor would otherwise
// leave frozen on screen. It holds no timer itself: the owner calls Evaluate
// once per WatchdogInterval.
type Watchdog struct {
	logger     logging.Logger
	staleAfter time.Duration
}

func NewWatchdog(logger logging.Logger, staleAfter time.Duration) *Watchdog {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Watchdog{logger: logger, staleAfter: staleAfter}
}

// Evaluate applies both staleness rules and reports whether anything was zeroed
func (w *Watchdog) Evaluate(now time.Time, m *LiveMetrics, connected bool) bool {
	if !connected || m == nil {
		return false
	}

	if silence, ok := m.Silence(now); ok && silence >= w.staleAfter {
		if m.SpeedKph == 0 && m.CadenceRpm == 0 {
			return false
		}
		w.logger.Printf("Watchdog: no telemetry for %v, zeroing speed and cadence", silence.Round(time.Millisecond))
		m.SpeedKph = 0
		m.CadenceRpm = 0
		return true
	}

	if m.SpeedKph == 0 && m.CadenceRpm != 0 && !m.CadenceChangedAt.IsZero() {
		held := now.Sub(m.CadenceChangedAt)
		if held >= w.staleAfter {
			w.logger.Printf("Watchdog: cadence %.1f rpm unchanged for %v at zero speed, zeroing cadence",
				m.CadenceRpm, held.Round(time.Millisecond))
			m.CadenceRpm = 0
			return true
		}
	}
	return false
}
