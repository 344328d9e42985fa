// Package track maps ride distance onto a virtual route made of terrain
// segments and decides when the route is finished.
package track

import "fmt"

type SegmentType int

const (
	SegmentFlat SegmentType = iota
	SegmentSprint
	SegmentClimb
)

func (t SegmentType) String() string {
	switch t {
	case SegmentFlat:
		return "Flat"
	case SegmentSprint:
		return "Sprint"
	case SegmentClimb:
		return "Climb"
	default:
		return fmt.Sprintf("SegmentType(%d)", int(t))
	}
}

type Segment struct {
	Type     SegmentType
	LengthKm float64
}

type Definition struct {
	ID              string
	Name            string
	TotalDistanceKm float64
	Segments        []Segment
}

// SegmentsLengthKm sums the segment lengths
func (d Definition) SegmentsLengthKm() float64 {
	var total float64
	for _, s := range d.Segments {
		total += s.LengthKm
	}
	return total
}

// TrackProgress locates a distance within a definition
type TrackProgress struct {
	SegmentIndex          int
	CurrentSegment        Segment
	NextSegment           *Segment
	SegmentFraction       float64
	DistanceIntoSegmentKm float64
	DistanceToNextKm      float64
}

// Progress finds the first segment whose end is at or beyond progressKm.
// Distance past the end of the route stays in the last segment. It returns
// false only for a definition without segments.
func Progress(def Definition, progressKm float64) (TrackProgress, bool) {
	n := len(def.Segments)
	if n == 0 {
		return TrackProgress{}, false
	}

	idx := n - 1
	var start float64
	for i, seg := range def.Segments {
		if start+seg.LengthKm >= progressKm || i == n-1 {
			idx = i
			break
		}
		start += seg.LengthKm
	}

	seg := def.Segments[idx]
	p := TrackProgress{
		SegmentIndex:    idx,
		CurrentSegment:  seg,
		SegmentFraction: segmentFraction(progressKm, start, seg.LengthKm),
	}
	p.DistanceIntoSegmentKm = clamp(progressKm-start, 0, seg.LengthKm)
	p.DistanceToNextKm = seg.LengthKm - p.DistanceIntoSegmentKm
	if idx+1 < n {
		next := def.Segments[idx+1]
		p.NextSegment = &next
	}
	return p, true
}

// SegmentFraction is the fraction of segment idx covered at progressKm
func SegmentFraction(def Definition, idx int, progressKm float64) float64 {
	if idx < 0 || idx >= len(def.Segments) {
		return 0
	}
	var start float64
	for _, seg := range def.Segments[:idx] {
		start += seg.LengthKm
	}
	return segmentFraction(progressKm, start, def.Segments[idx].LengthKm)
}

func segmentFraction(progressKm, startKm, lengthKm float64) float64 {
	if lengthKm <= 0 {
		return 0
	}
	return clamp((progressKm-startKm)/lengthKm, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
