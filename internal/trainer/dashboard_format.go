package trainer

import (
	"fmt"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/history"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/track"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/workout"
)

const progressBarWidth = 24

// formatDurationHMS formats a duration as MM:SS, or H:MM:SS past an hour
func formatDurationHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := totalSeconds % 3600 / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// formatDistance shows meters below a kilometer
func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// progressBar draws fraction (0..1) as a fixed-width bar
func progressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return "[green]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) + "[white]"
}

func connectionColor(kind bt.StateKind) string {
	switch kind {
	case bt.StateSubscribed:
		return "green"
	case bt.StateFailed:
		return "red"
	case bt.StateIdle, bt.StateDisconnected:
		return "gray"
	default:
		return "yellow"
	}
}

func formatConnectionPanel(d Dashboard) string {
	st := d.Connection
	text := "\n"
	text += fmt.Sprintf("  [%s]●[white] %s\n", connectionColor(st.State.Kind), st.State.Kind)
	if !st.State.Device.IsZero() {
		text += fmt.Sprintf("  [gray]Bike:[white]  %s\n", st.State.Device)
	}
	if !st.KnownDevice.IsZero() {
		text += fmt.Sprintf("  [gray]Known:[white] %s\n", st.KnownDevice)
	}
	if !st.Powered {
		text += "  [red]Bluetooth is off[white]\n"
	}
	if st.State.Kind == bt.StateFailed && st.State.Reason != "" {
		text += fmt.Sprintf("  [red]%s[white]\n", st.State.Reason)
	}
	if st.LastError != "" {
		text += fmt.Sprintf("  [gray]Last error:[white] %s\n", st.LastError)
	}
	return text
}

func formatLivePanel(d Dashboard) string {
	if d.Connection.State.Kind != bt.StateSubscribed && d.Metrics.LastUpdate.IsZero() {
		return "\n  [gray]Waiting for bike...[white]\n"
	}
	text := "\n"
	if d.Metrics.HasSpeedReading {
		text += fmt.Sprintf("  [green]→[white] Speed:    [yellow]%5.1f[white] km/h\n", d.Metrics.SpeedKph)
	} else {
		text += fmt.Sprintf("  [green]→[white] Speed:    [yellow]%5.1f[white] km/h [gray](from cadence)[white]\n", d.Reading.SpeedKph)
	}
	text += fmt.Sprintf("  [cyan]↻[white] Cadence:  [yellow]%5.0f[white] rpm\n", d.Metrics.CadenceRpm)
	if !d.Metrics.LastUpdate.IsZero() {
		text += fmt.Sprintf("  [gray]Last frame %s[white]\n", d.Metrics.LastUpdate.Format("15:04:05"))
	}
	return text
}

func sessionStateColor(s workout.SessionState) string {
	switch s {
	case workout.StateActive:
		return "green"
	case workout.StatePaused:
		return "yellow"
	case workout.StateCompleted:
		return "blue"
	default:
		return "gray"
	}
}

func formatSessionPanel(d Dashboard) string {
	text := "\n"
	text += fmt.Sprintf("  [%s]%s[white]\n\n", sessionStateColor(d.Session), d.Session)
	text += fmt.Sprintf("  [gray]Elapsed:[white]   %s\n", formatDurationHMS(secondsToDuration(d.ElapsedSeconds)))
	text += fmt.Sprintf("  [gray]Distance:[white]  %s\n", formatDistance(d.DistanceMeters))
	text += fmt.Sprintf("  [gray]Avg speed:[white] %.1f km/h\n", d.AverageSpeedKph)
	text += fmt.Sprintf("  [gray]Max speed:[white] %.1f km/h\n", d.MaxSpeedKph)
	if d.HasWindow {
		text += fmt.Sprintf("  [gray]Last %s:[white] %.1f km/h over %s\n",
			formatDurationHMS(d.Window.Duration), d.Window.AverageSpeedKph, formatDistance(d.Window.DistanceMeters))
	}

	if d.LastSummary != nil {
		s := d.LastSummary
		text += "\n  [blue]Last workout[white]\n"
		text += fmt.Sprintf("  %s in %s, %.1f km/h\n", formatDistance(s.DistanceMeters),
			formatDurationHMS(secondsToDuration(s.ElapsedSeconds)), s.AverageSpeedKph())
		if d.LastRecordError != "" {
			text += fmt.Sprintf("  [red]Not saved: %s[white]\n", d.LastRecordError)
		}
	}

	text += "\n  [gray]─────────────────────────[white]\n"
	switch d.Session {
	case workout.StateActive:
		text += "  [yellow]S[white] Pause  |  [yellow]X[white] Stop\n"
	case workout.StatePaused:
		text += "  [yellow]S[white] Resume  |  [yellow]X[white] Stop\n"
	case workout.StateCompleted:
		text += "  [yellow]S[white] New workout\n"
	default:
		text += "  [yellow]S[white] Start\n"
	}
	return text
}

func formatTrackPanel(st track.Status) string {
	text := "\n"
	if st.Track == nil {
		text += "  [gray]Free ride[white]\n"
	} else {
		text += fmt.Sprintf("  [yellow]%s[white] [gray](%.1f km)[white]\n", st.Track.Name, st.Track.TotalDistanceKm)
	}
	if st.TargetDistanceKm > 0 {
		text += fmt.Sprintf("\n  %s %3.0f%%\n", progressBar(st.Fraction, progressBarWidth), st.Fraction*100)
		text += fmt.Sprintf("  [gray]%.2f / %.1f km[white]\n", st.CoveredKm, st.TargetDistanceKm)
	}
	if st.HasProgress {
		p := st.Progress
		text += fmt.Sprintf("\n  [cyan]Segment %d/%d[white] %s\n", p.SegmentIndex+1, len(st.Track.Segments), p.CurrentSegment.Type)
		text += fmt.Sprintf("  %s\n", progressBar(p.SegmentFraction, progressBarWidth))
		if p.NextSegment != nil {
			text += fmt.Sprintf("  [gray]Next:[white] %s in %.2f km\n", p.NextSegment.Type, p.DistanceToNextKm)
		} else {
			text += "  [gray]Next:[white] [green]Finish![white]\n"
		}
	}
	if st.Completed {
		text += "\n  [green]Target reached[white]\n"
	}
	text += "\n  [yellow]T[white] Next track\n"
	return text
}

func formatHistoryItem(rec history.WorkoutRecord) (string, string) {
	main := fmt.Sprintf("%s  %s", rec.Summary.StartTime.Local().Format("2006-01-02 15:04"), formatDistance(rec.Summary.DistanceMeters))
	secondary := formatDurationHMS(secondsToDuration(rec.Summary.ElapsedSeconds))
	if rec.Track.TrackName != "" {
		secondary += "  " + rec.Track.TrackName
	}
	return main, secondary
}

func formatHistoryDetail(detail HistoryDetail) string {
	rec := detail.Record
	s := rec.Summary
	text := "\n"
	text += fmt.Sprintf("  [yellow]%s[white]\n\n", s.StartTime.Local().Format("Mon 2 Jan 2006 15:04"))
	text += fmt.Sprintf("  [gray]Elapsed:[white]   %s\n", formatDurationHMS(secondsToDuration(s.ElapsedSeconds)))
	text += fmt.Sprintf("  [gray]Distance:[white]  %s\n", formatDistance(s.DistanceMeters))
	text += fmt.Sprintf("  [gray]Avg speed:[white] %.1f km/h\n", s.AverageSpeedKph())
	if detail.Err != "" {
		text += fmt.Sprintf("  [red]Samples: %s[white]\n", detail.Err)
	} else {
		text += fmt.Sprintf("  [gray]Max speed:[white] %.1f km/h\n", detail.MaxSpeedKph)
		text += fmt.Sprintf("  [gray]Samples:[white]   %d\n", detail.SampleCount)
	}
	if rec.Track.TrackName != "" {
		text += fmt.Sprintf("\n  [cyan]%s[white]\n", rec.Track.TrackName)
	}
	if rec.Track.TargetDistanceKm > 0 {
		text += fmt.Sprintf("  %s %3.0f%% of %.1f km\n", progressBar(rec.Track.ProgressFraction, progressBarWidth),
			rec.Track.ProgressFraction*100, rec.Track.TargetDistanceKm)
	}
	if rec.Track.Completed {
		text += "  [green]Completed[white]\n"
	}
	text += fmt.Sprintf("\n  [gray]%s[white]\n", rec.ID)
	return text
}
