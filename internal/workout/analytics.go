package workout

import "time"

const (
	DefaultTrailingWindow = 60 * time.Second
	// DefaultContiguityGap is the largest spacing between samples that still
	// counts as one run
	DefaultContiguityGap = 2 * time.Second
)

type WindowStats struct {
	Start           time.Time
	End             time.Time
	Duration        time.Duration
	DistanceMeters  float64
	AverageSpeedKph float64
	Samples         int
}

func AverageSpeedKph(distanceMeters, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return distanceMeters / elapsedSeconds * 3.6
}

func MaxSpeedKph(samples []Sample) float64 {
	var top float64
	for _, s := range samples {
		if s.SpeedKph > top {
			top = s.SpeedKph
		}
	}
	return top
}

// TrailingWindow walks back from the newest sample while samples stay within
// maxGap of each other and within window of the newest one. Distance uses the
// same rule as tick integration: each sample's speed covers the interval
// ending at its timestamp.
func TrailingWindow(samples []Sample, window, maxGap time.Duration) (WindowStats, bool) {
	if len(samples) == 0 {
		return WindowStats{}, false
	}

	last := len(samples) - 1
	end := samples[last].Timestamp
	first := last
	for i := last; i > 0; i-- {
		prev := samples[i-1].Timestamp
		if samples[i].Timestamp.Sub(prev) > maxGap || end.Sub(prev) > window {
			break
		}
		first = i - 1
	}

	stats := WindowStats{
		Start:    samples[first].Timestamp,
		End:      end,
		Duration: end.Sub(samples[first].Timestamp),
		Samples:  last - first + 1,
	}
	for i := first + 1; i <= last; i++ {
		dt := samples[i].Timestamp.Sub(samples[i-1].Timestamp).Seconds()
		speed := samples[i].SpeedKph
		if speed < 0 {
			speed = 0
		}
		stats.DistanceMeters += speed / 3.6 * dt
	}

	if stats.Duration > 0 {
		stats.AverageSpeedKph = AverageSpeedKph(stats.DistanceMeters, stats.Duration.Seconds())
	} else {
		stats.AverageSpeedKph = samples[last].SpeedKph
	}
	return stats, true
}
