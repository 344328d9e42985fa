package history

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

// FITExporter writes each workout as a FIT activity file in dir
type FITExporter struct {
	dir    string
	logger logging.Logger
}

var _ Recorder = (*FITExporter)(nil)

func NewFITExporter(dir string, logger logging.Logger) *FITExporter {
	if logger == nil {
		panic("FITExporter: logger cannot be nil")
	}
	return &FITExporter{dir: dir, logger: logger}
}

func (e *FITExporter) Record(_ context.Context, rec WorkoutRecord) error {
	_, err := e.Export(rec)
	return err
}

// Export writes the activity file and returns its path
func (e *FITExporter) Export(rec WorkoutRecord) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("fit: mkdir: %w", err)
	}
	name := fmt.Sprintf("%s-%.8s.fit", rec.Summary.StartTime.UTC().Format("20060102-150405"), rec.ID)
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("fit: create: %w", err)
	}
	defer f.Close()

	activity := buildActivity(rec)
	if err := encoder.New(f).Encode(&activity); err != nil {
		return "", fmt.Errorf("fit: encode: %w", err)
	}
	e.logger.Printf("FITExporter: wrote %s", path)
	return path, nil
}

func buildActivity(rec WorkoutRecord) proto.FIT {
	summary := rec.Summary
	fit := proto.FIT{}

	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		TimeCreated:  summary.StartTime,
	}
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	start := mesgdef.Event{
		Timestamp: summary.StartTime,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStart,
	}
	fit.Messages = append(fit.Messages, start.ToMesg(nil))

	// records carry cumulative distance the same way the session integrates it
	var distanceM float64
	for i, s := range rec.Samples {
		if i > 0 {
			dt := s.Timestamp.Sub(rec.Samples[i-1].Timestamp).Seconds()
			distanceM += clampSpeed(s.SpeedKph) / 3.6 * dt
		}
		record := mesgdef.Record{
			Timestamp:     s.Timestamp,
			Distance:      uint32(distanceM * 100),
			EnhancedSpeed: speedToFIT(s.SpeedKph),
			Cadence:       uint8(clampCadence(s.CadenceRpm)),
		}
		fit.Messages = append(fit.Messages, record.ToMesg(nil))
	}

	stop := mesgdef.Event{
		Timestamp: summary.EndTime,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	fit.Messages = append(fit.Messages, stop.ToMesg(nil))

	elapsedMs := uint32(summary.EndTime.Sub(summary.StartTime).Milliseconds())
	timerMs := uint32(summary.ElapsedSeconds * 1000)
	totalCm := uint32(summary.DistanceMeters * 100)

	lap := mesgdef.Lap{
		Timestamp:        summary.EndTime,
		StartTime:        summary.StartTime,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    totalCm,
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
	}
	fit.Messages = append(fit.Messages, lap.ToMesg(nil))

	session := mesgdef.Session{
		Timestamp:        summary.EndTime,
		StartTime:        summary.StartTime,
		TotalElapsedTime: elapsedMs,
		TotalTimerTime:   timerMs,
		TotalDistance:    totalCm,
		EnhancedAvgSpeed: speedToFIT(summary.AverageSpeedKph()),
		EnhancedMaxSpeed: speedToFIT(workout.MaxSpeedKph(rec.Samples)),
		Sport:            typedef.SportCycling,
		SubSport:         typedef.SubSportVirtualActivity,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}
	fit.Messages = append(fit.Messages, session.ToMesg(nil))

	return fit
}

// speedToFIT converts km/h to the FIT enhanced speed unit (mm/s)
func speedToFIT(kph float64) uint32 {
	return uint32(math.Round(clampSpeed(kph) / 3.6 * 1000))
}

func clampSpeed(kph float64) float64 {
	if kph < 0 {
		return 0
	}
	return kph
}

func clampCadence(rpm float64) float64 {
	switch {
	case rpm < 0:
		return 0
	case rpm > 254:
		// 255 is the FIT invalid value for uint8
		return 254
	}
	return rpm
}
