package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/telemetry"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func riding(speed, cadence float64) telemetry.LiveMetrics {
	return telemetry.LiveMetrics{SpeedKph: speed, CadenceRpm: cadence, HasSpeedReading: true}
}

func newSession() *Session {
	return NewSession(logging.NewRecorder(), DefaultMetersPerRevolution)
}

func TestSession_ConstantSpeedTicks(t *testing.T) {
	s := newSession()
	require.True(t, s.Start(t0))

	for i := 1; i <= 3; i++ {
		_, appended := s.Tick(at(float64(i)), riding(36, 90))
		assert.True(t, appended)
	}

	assert.InDelta(t, 3.0, s.ElapsedSeconds(), 1e-9)
	assert.InDelta(t, 30.0, s.DistanceMeters(), 1e-9)
	assert.Len(t, s.Samples(), 3)
	assert.InDelta(t, 36.0, s.AverageSpeedKph(), 1e-9)
}

func TestSession_StartGuards(t *testing.T) {
	s := newSession()
	assert.True(t, s.Start(t0))
	assert.False(t, s.Start(at(1)), "start while active")
	assert.Equal(t, t0, s.StartTime())

	assert.False(t, s.Resume(at(1)), "resume while active")
	assert.True(t, s.Pause(at(1), riding(0, 0)))
	assert.False(t, s.Pause(at(2), riding(0, 0)), "pause while paused")
	assert.False(t, s.Start(at(2)), "start while paused")
}

func TestSession_PausedTicksChangeNothing(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 90))
	s.Pause(at(1), riding(36, 90))

	elapsed, distance := s.ElapsedSeconds(), s.DistanceMeters()
	for i := 2; i < 10; i++ {
		_, appended := s.Tick(at(float64(i)), riding(50, 90))
		assert.False(t, appended)
	}
	assert.Equal(t, elapsed, s.ElapsedSeconds())
	assert.Equal(t, distance, s.DistanceMeters())
	assert.Len(t, s.Samples(), 1)
}

func TestSession_PauseFlushesPartialInterval(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 90))
	s.Pause(at(1.5), riding(36, 90))

	assert.InDelta(t, 1.5, s.ElapsedSeconds(), 1e-9)
	assert.InDelta(t, 15.0, s.DistanceMeters(), 1e-9)
	assert.Len(t, s.Samples(), 1)
}

func TestSession_ResumeSkipsPausedTime(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 90))
	s.Pause(at(1), riding(36, 90))

	require.True(t, s.Resume(at(100)))
	s.Tick(at(101), riding(36, 90))

	assert.InDelta(t, 2.0, s.ElapsedSeconds(), 1e-9)
	assert.InDelta(t, 20.0, s.DistanceMeters(), 1e-9)
}

func TestSession_StopOnlyOnce(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(18, 80))
	s.Tick(at(2), riding(18, 80))

	summary, err := s.Stop(at(2), riding(18, 80))
	require.NoError(t, err)
	assert.Equal(t, t0, summary.StartTime)
	assert.Equal(t, at(2), summary.EndTime)
	assert.InDelta(t, 10.0, summary.DistanceMeters, 1e-9)
	assert.InDelta(t, 2.0, summary.ElapsedSeconds, 1e-9)
	assert.InDelta(t, 18.0, summary.AverageSpeedKph(), 1e-9)
	assert.Equal(t, StateCompleted, s.State())

	_, err = s.Stop(at(3), riding(18, 80))
	assert.ErrorIs(t, err, ErrNothingToStop)
}

func TestSession_StopFromReady(t *testing.T) {
	s := newSession()
	_, err := s.Stop(t0, riding(0, 0))
	assert.ErrorIs(t, err, ErrNothingToStop)
	assert.Equal(t, StateReady, s.State())
}

func TestSession_StopWhilePaused(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 0))
	s.Pause(at(1), riding(36, 0))

	summary, err := s.Stop(at(50), riding(36, 0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, summary.ElapsedSeconds, 1e-9)
	assert.InDelta(t, 10.0, summary.DistanceMeters, 1e-9)
}

func TestSession_ResetAfterCompletion(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 0))
	_, err := s.Stop(at(1), riding(36, 0))
	require.NoError(t, err)
	assert.False(t, s.Start(at(2)))

	s.Reset()
	assert.Equal(t, StateReady, s.State())
	assert.Zero(t, s.DistanceMeters())
	assert.Empty(t, s.Samples())
	assert.True(t, s.Start(at(2)))
}

func TestSession_NegativeSpeedClamped(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 0))
	before := s.DistanceMeters()

	s.Tick(at(2), riding(-20, 0))
	assert.Equal(t, before, s.DistanceMeters())
	assert.InDelta(t, 2.0, s.ElapsedSeconds(), 1e-9)
}

func TestSession_DistanceNeverDecreases(t *testing.T) {
	s := newSession()
	s.Start(t0)
	speeds := []float64{10, -5, 0, 42.5, 3, -100, 25}
	prev := 0.0
	now := t0
	for i, speed := range speeds {
		now = now.Add(time.Duration(i*300) * time.Millisecond)
		s.Tick(now, riding(speed, 0))
		assert.GreaterOrEqual(t, s.DistanceMeters(), prev)
		prev = s.DistanceMeters()
	}
}

func TestSession_ClockStepBackIntegratesNothing(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(2), riding(36, 0))

	_, appended := s.Tick(at(1), riding(36, 0))
	assert.False(t, appended, "timestamps must strictly increase")
	assert.InDelta(t, 2.0, s.ElapsedSeconds(), 1e-9)
	assert.InDelta(t, 20.0, s.DistanceMeters(), 1e-9)

	samples := s.Samples()
	for i := 1; i < len(samples); i++ {
		assert.True(t, samples[i].Timestamp.After(samples[i-1].Timestamp))
	}
}

func TestSession_CadenceOnlyEstimate(t *testing.T) {
	s := NewSession(logging.NewRecorder(), 2.0)
	s.Start(t0)

	m := telemetry.LiveMetrics{CadenceRpm: 90}
	sample, appended := s.Tick(at(1), m)
	require.True(t, appended)

	// 90 rpm * 2.0 m * 60 / 1000 = 10.8 km/h
	assert.InDelta(t, 10.8, sample.SpeedKph, 1e-9)
	assert.InDelta(t, 3.0, s.DistanceMeters(), 1e-9)
}

func TestSession_SpeedReadingWinsOverEstimate(t *testing.T) {
	s := newSession()
	r := s.Reading(telemetry.LiveMetrics{SpeedKph: 0, CadenceRpm: 90, HasSpeedReading: true})
	assert.Zero(t, r.SpeedKph)
	assert.Equal(t, 90.0, r.CadenceRpm)
}

func TestSession_SetMetersPerRevolution(t *testing.T) {
	logger := logging.NewRecorder()
	s := NewSession(logger, 0)
	assert.Equal(t, DefaultMetersPerRevolution, s.MetersPerRevolution())

	s.SetMetersPerRevolution(-1)
	assert.Equal(t, DefaultMetersPerRevolution, s.MetersPerRevolution())
	assert.True(t, logger.Contains("ignoring meters per revolution"))

	s.SetMetersPerRevolution(2.3)
	assert.Equal(t, 2.3, s.MetersPerRevolution())
}

func TestSession_CatchUpAfterSuspension(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Tick(at(1), riding(36, 0))

	assert.False(t, s.CatchUp(at(1.8), riding(36, 0)), "gap under threshold")

	assert.True(t, s.CatchUp(at(31), riding(36, 0)))
	assert.InDelta(t, 31.0, s.ElapsedSeconds(), 1e-9)
	assert.InDelta(t, 310.0, s.DistanceMeters(), 1e-9)

	s.Tick(at(32), riding(36, 0))
	assert.InDelta(t, 32.0, s.ElapsedSeconds(), 1e-9)
}

func TestSession_CatchUpIgnoredWhenPaused(t *testing.T) {
	s := newSession()
	s.Start(t0)
	s.Pause(at(1), riding(36, 0))
	assert.False(t, s.CatchUp(at(60), riding(36, 0)))
	assert.InDelta(t, 1.0, s.ElapsedSeconds(), 1e-9)
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Active", StateActive.String())
	assert.Equal(t, "Paused", StatePaused.String())
	assert.Equal(t, "Completed", StateCompleted.String())
	assert.Equal(t, "Unknown", SessionState(42).String())
}
