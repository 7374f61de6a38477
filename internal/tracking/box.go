package tracking

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDetection is returned for boxes with non-positive or non-finite
// width/height. Such boxes would otherwise poison the Kalman state with NaN.
var ErrInvalidDetection = errors.New("tracking: invalid detection")

// Box is an axis-aligned bounding box: top-left corner plus size, in pixels.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Right returns the x coordinate of the right edge.
func (b Box) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Area returns Width * Height.
func (b Box) Area() float64 { return b.Width * b.Height }

// Valid reports whether the box can be tracked.
func (b Box) Valid() bool { return b.Validate() == nil }

// Validate returns ErrInvalidDetection unless the box has finite
// coordinates and strictly positive size.
func (b Box) Validate() error {
	for _, v := range [...]float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite box %+v", ErrInvalidDetection, b)
		}
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: box %+v has non-positive size", ErrInvalidDetection, b)
	}
	return nil
}

// Detection is one detector output for one frame: geometry plus the class
// label and confidence, which the tracker carries through without
// interpreting.
type Detection struct {
	Box
	ObjType    int
	Confidence float64
}

// NewDetection builds a Detection from its six fields.
func NewDetection(x, y, w, h float64, objType int, confidence float64) Detection {
	return Detection{
		Box:        Box{X: x, Y: y, Width: w, Height: h},
		ObjType:    objType,
		Confidence: confidence,
	}
}

// IOU returns the intersection-over-union of a and b: 0 for disjoint boxes,
// 1 for identical ones. Both boxes must have positive area.
func IOU(a, b Box) float64 {
	w := overlap(a.X, a.Width, b.X, b.Width)
	h := overlap(a.Y, a.Height, b.Y, b.Height)
	intersection := w * h
	if intersection == 0 {
		return 0
	}

	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return math.Min(1, intersection/union)
}

// overlap returns the length shared by [lo1, lo1+len1] and [lo2, lo2+len2].
// When one interval contains the other the contained length is returned
// as is, so a box always overlaps itself by exactly its own size.
func overlap(lo1, len1, lo2, len2 float64) float64 {
	hi1, hi2 := lo1+len1, lo2+len2
	in1 := lo1 >= lo2 && hi1 <= hi2
	in2 := lo2 >= lo1 && hi2 <= hi1
	switch {
	case in1 && in2:
		return math.Min(len1, len2)
	case in1:
		return len1
	case in2:
		return len2
	}
	d := math.Min(hi1, hi2) - math.Max(lo1, lo2)
	return math.Min(math.Max(0, d), math.Min(len1, len2))
}

// CalculateIou returns the IOU between a detection box and the track's
// current predicted box. Predict must already have run this frame.
func CalculateIou(det Box, track *Track) float64 {
	return IOU(det, track.GetStateAsBbox())
}

// boxToObservation converts a box to the filter's observation space
// [cx, cy, w, h].
func boxToObservation(b Box) []float64 {
	return []float64{
		b.X + b.Width/2,
		b.Y + b.Height/2,
		b.Width,
		b.Height,
	}
}

// observationToBox is the inverse of boxToObservation. Only the first four
// elements are read, so a full state vector may be passed.
func observationToBox(obs []float64) Box {
	w, h := obs[2], obs[3]
	return Box{
		X:      obs[0] - w/2,
		Y:      obs[1] - h/2,
		Width:  w,
		Height: h,
	}
}
