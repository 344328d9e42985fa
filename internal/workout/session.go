// Package workout integrates live telemetry into elapsed time, distance and
// a sample series under start/pause/resume/stop control.
package workout

import (
	"errors"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/telemetry"
)

// ErrNothingToStop is returned by Stop when no session was started
var ErrNothingToStop = errors.New("workout: nothing to stop")

const (
	DefaultMetersPerRevolution = 2.1
	TickInterval               = time.Second
	// CatchUpThreshold is the minimum gap since the last tick that a
	// foreground resume integrates in one step
	CatchUpThreshold = time.Second
)

type SessionState int

const (
	StateReady SessionState = iota
	StateActive
	StatePaused
	StateCompleted
)

func (s SessionState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateActive:
		return "Active"
	case StatePaused:
		return "Paused"
	case StateCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Sample is one point of the session series. Timestamps strictly increase.
type Sample struct {
	Timestamp  time.Time
	SpeedKph   float64
	CadenceRpm float64
}

// Summary is produced once, when a session completes
type Summary struct {
	StartTime      time.Time
	EndTime        time.Time
	DistanceMeters float64
	ElapsedSeconds float64
}

func (s Summary) AverageSpeedKph() float64 {
	return AverageSpeedKph(s.DistanceMeters, s.ElapsedSeconds)
}

// Reading is the speed and cadence integrated by one tick
type Reading struct {
	SpeedKph   float64
	CadenceRpm float64
}

// EstimateSpeedKph converts cadence into road speed for bikes that only
// report cadence
func EstimateSpeedKph(cadenceRpm, metersPerRevolution float64) float64 {
	return cadenceRpm * metersPerRevolution * 60 / 1000
}

// Session is not safe for concurrent use; the engine owns it
type Session struct {
	logger              logging.Logger
	metersPerRevolution float64

	state     SessionState
	startTime time.Time
	lastTick  time.Time

	elapsedSeconds float64
	distanceMeters float64
	samples        []Sample
}

func NewSession(logger logging.Logger, metersPerRevolution float64) *Session {
	if logger == nil {
		panic("Session: logger cannot be nil")
	}
	if metersPerRevolution <= 0 {
		metersPerRevolution = DefaultMetersPerRevolution
	}
	return &Session{
		logger:              logger,
		metersPerRevolution: metersPerRevolution,
		state:               StateReady,
	}
}

func (s *Session) State() SessionState          { return s.state }
func (s *Session) StartTime() time.Time         { return s.startTime }
func (s *Session) ElapsedSeconds() float64      { return s.elapsedSeconds }
func (s *Session) DistanceMeters() float64      { return s.distanceMeters }
func (s *Session) MetersPerRevolution() float64 { return s.metersPerRevolution }

// Samples returns a copy of the series
func (s *Session) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// SetMetersPerRevolution ignores non-positive values; callers validate input
func (s *Session) SetMetersPerRevolution(v float64) {
	if v <= 0 {
		s.logger.Printf("Session: ignoring meters per revolution %.3f", v)
		return
	}
	s.metersPerRevolution = v
}

// Reading picks the speed to integrate: the bike's own speed once it has
// reported one, otherwise the cadence estimate
func (s *Session) Reading(m telemetry.LiveMetrics) Reading {
	if m.HasSpeedReading {
		return Reading{SpeedKph: m.SpeedKph, CadenceRpm: m.CadenceRpm}
	}
	return Reading{
		SpeedKph:   EstimateSpeedKph(m.CadenceRpm, s.metersPerRevolution),
		CadenceRpm: m.CadenceRpm,
	}
}

// Start begins a session from Ready. Any other state is a no-op.
func (s *Session) Start(now time.Time) bool {
	if s.state != StateReady {
		s.logger.Printf("Session: cannot start from %s", s.state)
		return false
	}
	s.state = StateActive
	s.startTime = now
	s.lastTick = now
	s.logger.Printf("Session: started at %s", logging.Timestamp(now))
	return true
}

// Pause integrates the partial interval since the last tick, without
// recording a sample, and freezes the session
func (s *Session) Pause(now time.Time, m telemetry.LiveMetrics) bool {
	if s.state != StateActive {
		s.logger.Printf("Session: cannot pause from %s", s.state)
		return false
	}
	s.integrate(now, s.Reading(m))
	s.state = StatePaused
	s.logger.Printf("Session: paused at %.1fs, %.1fm", s.elapsedSeconds, s.distanceMeters)
	return true
}

// Resume restarts integration from now so the paused interval is not counted
func (s *Session) Resume(now time.Time) bool {
	if s.state != StatePaused {
		s.logger.Printf("Session: cannot resume from %s", s.state)
		return false
	}
	s.state = StateActive
	s.lastTick = now
	s.logger.Printf("Session: resumed")
	return true
}

// Stop completes an Active or Paused session and returns its only summary
func (s *Session) Stop(now time.Time, m telemetry.LiveMetrics) (Summary, error) {
	switch s.state {
	case StateActive:
		s.integrate(now, s.Reading(m))
	case StatePaused:
	default:
		s.logger.Printf("Session: nothing to stop in %s", s.state)
		return Summary{}, ErrNothingToStop
	}

	s.state = StateCompleted
	summary := Summary{
		StartTime:      s.startTime,
		EndTime:        now,
		DistanceMeters: s.distanceMeters,
		ElapsedSeconds: s.elapsedSeconds,
	}
	s.logger.Printf("Session: completed %.1fm in %.1fs", summary.DistanceMeters, summary.ElapsedSeconds)
	return summary, nil
}

// Reset discards the session and returns to Ready
func (s *Session) Reset() {
	s.state = StateReady
	s.startTime = time.Time{}
	s.lastTick = time.Time{}
	s.elapsedSeconds = 0
	s.distanceMeters = 0
	s.samples = nil
}

// Tick integrates one timer interval and appends a sample. It reports
// whether a sample was appended.
func (s *Session) Tick(now time.Time, m telemetry.LiveMetrics) (Sample, bool) {
	if s.state != StateActive {
		return Sample{}, false
	}
	reading := s.Reading(m)
	s.integrate(now, reading)
	return s.appendSample(now, reading)
}

// CatchUp integrates the whole gap since the last tick in one step when
// the process was suspended for longer than CatchUpThreshold
func (s *Session) CatchUp(now time.Time, m telemetry.LiveMetrics) bool {
	if s.state != StateActive {
		return false
	}
	gap := now.Sub(s.lastTick)
	if gap <= CatchUpThreshold {
		return false
	}
	s.logger.Printf("Session: catching up %v after suspension", gap.Round(time.Millisecond))
	reading := s.Reading(m)
	s.integrate(now, reading)
	s.appendSample(now, reading)
	return true
}

func (s *Session) integrate(now time.Time, r Reading) {
	dt := now.Sub(s.lastTick).Seconds()
	if dt < 0 {
		dt = 0
	}
	speed := r.SpeedKph
	if speed < 0 {
		speed = 0
	}
	s.elapsedSeconds += dt
	s.distanceMeters += speed / 3.6 * dt
	s.lastTick = now
}

func (s *Session) appendSample(now time.Time, r Reading) (Sample, bool) {
	if n := len(s.samples); n > 0 && !now.After(s.samples[n-1].Timestamp) {
		return Sample{}, false
	}
	sample := Sample{Timestamp: now, SpeedKph: r.SpeedKph, CadenceRpm: r.CadenceRpm}
	s.samples = append(s.samples, sample)
	return sample, true
}

// AverageSpeedKph over the whole session
func (s *Session) AverageSpeedKph() float64 {
	return AverageSpeedKph(s.distanceMeters, s.elapsedSeconds)
}

func (s *Session) MaxSpeedKph() float64 {
	return MaxSpeedKph(s.samples)
}

// RecentWindow summarizes the trailing window of the last contiguous run
func (s *Session) RecentWindow(window time.Duration) (WindowStats, bool) {
	return TrailingWindow(s.samples, window, DefaultContiguityGap)
}
