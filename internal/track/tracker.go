package track

import (
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

// AutoStop latches once ride distance past a baseline reaches a target
type AutoStop struct {
	baselineMeters float64
	targetMeters   float64
	armed          bool
	fired          bool
}

// Arm sets a new baseline and target and clears the latch
func (a *AutoStop) Arm(baselineMeters, targetKm float64) {
	a.baselineMeters = baselineMeters
	a.targetMeters = targetKm * 1000
	a.armed = targetKm > 0
	a.fired = false
}

func (a *AutoStop) Disarm() {
	*a = AutoStop{}
}

func (a *AutoStop) Fired() bool { return a.fired }

func (a *AutoStop) BaselineMeters() float64 { return a.baselineMeters }

// CoveredKm is the distance ridden since the baseline
func (a *AutoStop) CoveredKm(distanceMeters float64) float64 {
	covered := (distanceMeters - a.baselineMeters) / 1000
	if covered < 0 {
		return 0
	}
	return covered
}

// Check returns true exactly once, on the first call at or past the target
func (a *AutoStop) Check(distanceMeters float64) bool {
	if !a.armed || a.fired {
		return false
	}
	if distanceMeters-a.baselineMeters >= a.targetMeters {
		a.fired = true
		return true
	}
	return false
}

// Status is what the dashboard and history need about the route
type Status struct {
	Track            *Definition
	TargetDistanceKm float64
	CoveredKm        float64
	// Fraction of the target covered, clamped to [0, 1]
	Fraction float64
	Progress TrackProgress
	// HasProgress is false without a track or for a track with no segments
	HasProgress bool
	Completed   bool
}

// Tracker combines the selected track with the auto-stop latch. Without a
// track the profile target distance is used.
type Tracker struct {
	logger          logging.Logger
	selected        *Definition
	profileTargetKm float64
	autoStop        AutoStop
}

func NewTracker(logger logging.Logger, profileTargetKm float64) *Tracker {
	if logger == nil {
		panic("Tracker: logger cannot be nil")
	}
	return &Tracker{logger: logger, profileTargetKm: profileTargetKm}
}

func (t *Tracker) Selected() (Definition, bool) {
	if t.selected == nil {
		return Definition{}, false
	}
	return *t.selected, true
}

// TargetKm is the selected track's length or the profile target
func (t *Tracker) TargetKm() float64 {
	if t.selected != nil {
		return t.selected.TotalDistanceKm
	}
	return t.profileTargetKm
}

// Select switches the track (nil for none), re-baselining at the current
// ride distance and clearing the latch
func (t *Tracker) Select(def *Definition, distanceMeters float64) {
	if def == nil {
		t.selected = nil
		t.logger.Printf("Tracker: track cleared at %.0fm", distanceMeters)
	} else {
		d := *def
		t.selected = &d
		t.logger.Printf("Tracker: selected %q (%.1f km) at %.0fm", d.Name, d.TotalDistanceKm, distanceMeters)
	}
	t.autoStop.Arm(distanceMeters, t.TargetKm())
}

// SetProfileTarget changes the no-track target; it re-arms only when no
// track is selected
func (t *Tracker) SetProfileTarget(targetKm float64, distanceMeters float64) {
	t.profileTargetKm = targetKm
	if t.selected == nil {
		t.autoStop.Arm(distanceMeters, targetKm)
	}
}

// WorkoutStarted re-baselines for a fresh session
func (t *Tracker) WorkoutStarted(distanceMeters float64) {
	t.autoStop.Arm(distanceMeters, t.TargetKm())
}

// Update checks auto-stop against the ride distance and reports the status.
// The returned bool is true only on the tick that reaches the target.
func (t *Tracker) Update(distanceMeters float64) (Status, bool) {
	fired := t.autoStop.Check(distanceMeters)
	if fired {
		t.logger.Printf("Tracker: target %.1f km reached", t.TargetKm())
	}
	return t.Status(distanceMeters), fired
}

func (t *Tracker) Status(distanceMeters float64) Status {
	st := Status{
		TargetDistanceKm: t.TargetKm(),
		CoveredKm:        t.autoStop.CoveredKm(distanceMeters),
		Completed:        t.autoStop.Fired(),
	}
	if st.TargetDistanceKm > 0 {
		st.Fraction = clamp(st.CoveredKm/st.TargetDistanceKm, 0, 1)
	}
	if t.selected != nil {
		d := *t.selected
		st.Track = &d
		st.Progress, st.HasProgress = Progress(d, st.CoveredKm)
	}
	return st
}
