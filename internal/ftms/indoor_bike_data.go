// Package ftms decodes Fitness Machine Service notifications.
// See: https://www.bluetooth.com/specifications/specs/fitness-machine-service-1-0/
package ftms

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for payloads too short to hold flags and a field
var ErrMalformedFrame = errors.New("ftms: malformed indoor bike data frame")

// Frame is the subset of an Indoor Bike Data notification the engine consumes
type Frame struct {
	SpeedKph   float64
	HasSpeed   bool
	CadenceRpm float64
	HasCadence bool
}

func (f Frame) Speed() (float64, bool) {
	return f.SpeedKph, f.HasSpeed
}

func (f Frame) Cadence() (float64, bool) {
	return f.CadenceRpm, f.HasCadence
}

// Empty reports whether the frame carried neither speed nor cadence
func (f Frame) Empty() bool {
	return !f.HasSpeed && !f.HasCadence
}

func (f Frame) String() string {
	speed, cadence := "-", "-"
	if f.HasSpeed {
		speed = fmt.Sprintf("%.2f km/h", f.SpeedKph)
	}
	if f.HasCadence {
		cadence = fmt.Sprintf("%.1f rpm", f.CadenceRpm)
	}
	return fmt.Sprintf("speed=%s cadence=%s", speed, cadence)
}

// IndoorBikeData holds every field of the characteristic. A Has flag is set
// only when the field was actually read from the payload.
type IndoorBikeData struct {
	Flags uint16

	HasInstantaneousSpeed   bool
	HasAverageSpeed         bool
	HasInstantaneousCadence bool
	HasAverageCadence       bool
	HasTotalDistance        bool
	HasResistanceLevel      bool
	HasInstantaneousPower   bool
	HasAveragePower         bool
	HasExpendedEnergy       bool
	HasHeartRate            bool
	HasMetabolicEquivalent  bool
	HasElapsedTime          bool
	HasRemainingTime        bool

	InstantaneousSpeedKmh   float64
	AverageSpeedKmh         float64
	InstantaneousCadenceRpm float64
	AverageCadenceRpm       float64
	TotalDistanceMeters     uint32
	ResistanceLevel         int16
	InstantaneousPowerWatts int16
	AveragePowerWatts       int16
	TotalEnergyKJ           uint16
	EnergyPerHourKJ         uint16
	EnergyPerMinuteKJ       uint8
	HeartRateBpm            uint8
	MetabolicEquivalent     float64
	ElapsedTimeSeconds      uint16
	RemainingTimeSeconds    uint16

	// Truncated is set when a flagged field did not fit in the payload.
	// Fields before it are still valid.
	Truncated bool
}

// Decode returns the speed and cadence carried by an Indoor Bike Data payload.
// A truncated payload yields whatever was read before the cut. Only payloads
// shorter than four bytes are rejected.
func Decode(buf []byte) (Frame, error) {
	data, err := DecodeIndoorBikeData(buf)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		SpeedKph:   data.InstantaneousSpeedKmh,
		HasSpeed:   data.HasInstantaneousSpeed,
		CadenceRpm: data.InstantaneousCadenceRpm,
		HasCadence: data.HasInstantaneousCadence,
	}, nil
}

// DecodeIndoorBikeData walks the flagged fields in wire order. Fields the
// engine does not use are still consumed so later fields stay aligned.
func DecodeIndoorBikeData(buf []byte) (*IndoorBikeData, error) {
	if len(buf) < minFrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(buf))
	}

	r := NewReader(buf)
	flags, _ := r.ReadU16()
	data := &IndoorBikeData{Flags: flags}

	steps := []struct {
		present bool
		read    func() bool
	}{
		// Bit 0 is inverted: set means "more data" and speed is absent
		{flags&flagMoreData == 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.InstantaneousSpeedKmh = float64(raw) * speedResolutionKph
				data.HasInstantaneousSpeed = true
			}
			return ok
		}},
		{flags&flagAverageSpeed != 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.AverageSpeedKmh = float64(raw) * speedResolutionKph
				data.HasAverageSpeed = true
			}
			return ok
		}},
		{flags&flagInstantaneousCadence != 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.InstantaneousCadenceRpm = float64(raw) * cadenceResolutionRpm
				data.HasInstantaneousCadence = true
			}
			return ok
		}},
		{flags&flagAverageCadence != 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.AverageCadenceRpm = float64(raw) * cadenceResolutionRpm
				data.HasAverageCadence = true
			}
			return ok
		}},
		{flags&flagTotalDistance != 0, func() bool {
			raw, ok := r.ReadU24()
			if ok {
				data.TotalDistanceMeters = raw
				data.HasTotalDistance = true
			}
			return ok
		}},
		{flags&flagResistanceLevel != 0, func() bool {
			raw, ok := r.ReadS16()
			if ok {
				data.ResistanceLevel = raw
				data.HasResistanceLevel = true
			}
			return ok
		}},
		{flags&flagInstantaneousPower != 0, func() bool {
			raw, ok := r.ReadS16()
			if ok {
				data.InstantaneousPowerWatts = raw
				data.HasInstantaneousPower = true
			}
			return ok
		}},
		{flags&flagAveragePower != 0, func() bool {
			raw, ok := r.ReadS16()
			if ok {
				data.AveragePowerWatts = raw
				data.HasAveragePower = true
			}
			return ok
		}},
		{flags&flagExpendedEnergy != 0, func() bool {
			if r.Remaining() < widthExpended {
				return false
			}
			data.TotalEnergyKJ, _ = r.ReadU16()
			data.EnergyPerHourKJ, _ = r.ReadU16()
			data.EnergyPerMinuteKJ, _ = r.ReadU8()
			data.HasExpendedEnergy = true
			return true
		}},
		{flags&flagHeartRate != 0, func() bool {
			raw, ok := r.ReadU8()
			if ok {
				data.HeartRateBpm = raw
				data.HasHeartRate = true
			}
			return ok
		}},
		{flags&flagMetabolicEquivalent != 0, func() bool {
			raw, ok := r.ReadU8()
			if ok {
				data.MetabolicEquivalent = float64(raw) * metResolution
				data.HasMetabolicEquivalent = true
			}
			return ok
		}},
		{flags&flagElapsedTime != 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.ElapsedTimeSeconds = raw
				data.HasElapsedTime = true
			}
			return ok
		}},
		{flags&flagRemainingTime != 0, func() bool {
			raw, ok := r.ReadU16()
			if ok {
				data.RemainingTimeSeconds = raw
				data.HasRemainingTime = true
			}
			return ok
		}},
	}

	for _, step := range steps {
		if !step.present {
			continue
		}
		if !step.read() {
			data.Truncated = true
			break
		}
	}
	return data, nil
}
