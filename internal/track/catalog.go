package track

import (
	"errors"
	"fmt"
)

var ErrUnknownTrack = errors.New("track: unknown track")

// Catalog is an ordered, read-only set of definitions
type Catalog struct {
	defs []Definition
}

func NewCatalog(defs ...Definition) *Catalog {
	return &Catalog{defs: defs}
}

// DefaultCatalog returns the built-in routes
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Definition{
			ID: "river-loop", Name: "River Loop", TotalDistanceKm: 10,
			Segments: []Segment{
				{SegmentFlat, 3}, {SegmentSprint, 0.5}, {SegmentFlat, 3},
				{SegmentClimb, 1.5}, {SegmentFlat, 2},
			},
		},
		Definition{
			ID: "hill-repeats", Name: "Hill Repeats", TotalDistanceKm: 9,
			Segments: []Segment{
				{SegmentFlat, 2}, {SegmentClimb, 1}, {SegmentFlat, 1}, {SegmentClimb, 1},
				{SegmentFlat, 1}, {SegmentClimb, 1}, {SegmentFlat, 2},
			},
		},
		Definition{
			ID: "sprint-circuit", Name: "Sprint Circuit", TotalDistanceKm: 5,
			Segments: []Segment{
				{SegmentFlat, 1}, {SegmentSprint, 0.4}, {SegmentFlat, 1}, {SegmentSprint, 0.4},
				{SegmentFlat, 1}, {SegmentSprint, 0.4}, {SegmentFlat, 0.8},
			},
		},
		Definition{
			ID: "alpine-pass", Name: "Alpine Pass", TotalDistanceKm: 20,
			Segments: []Segment{
				{SegmentFlat, 5}, {SegmentClimb, 12}, {SegmentFlat, 3},
			},
		},
	)
}

func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Get(id string) (Definition, error) {
	for _, d := range c.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTrack, id)
}

// Next cycles through the catalog: no track, first, second, ..., last, no
// track. It returns false when the next step is "no track".
func (c *Catalog) Next(currentID string) (Definition, bool) {
	if len(c.defs) == 0 {
		return Definition{}, false
	}
	if currentID == "" {
		return c.defs[0], true
	}
	for i, d := range c.defs {
		if d.ID == currentID && i+1 < len(c.defs) {
			return c.defs[i+1], true
		}
	}
	return Definition{}, false
}
