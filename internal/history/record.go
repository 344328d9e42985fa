// Package history keeps completed workouts: a SQLite log of every session and
// optional FIT activity files for upload elsewhere.
package history

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

// TrackContext describes the route a workout was ridden on, if any
type TrackContext struct {
	TrackID          string
	TrackName        string
	TargetDistanceKm float64
	ProgressFraction float64
	Completed        bool
}

type WorkoutRecord struct {
	ID      string
	Summary workout.Summary
	Samples []workout.Sample
	Track   TrackContext
}

func NewWorkoutRecord(summary workout.Summary, samples []workout.Sample, track TrackContext) WorkoutRecord {
	return WorkoutRecord{
		ID:      uuid.NewString(),
		Summary: summary,
		Samples: samples,
		Track:   track,
	}
}

// Recorder receives each completed workout exactly once
type Recorder interface {
	Record(ctx context.Context, rec WorkoutRecord) error
}

// MultiRecorder hands a record to every recorder and joins their errors
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec WorkoutRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
