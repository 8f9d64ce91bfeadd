package models

import "math"

// BoundingBox is an axis-aligned rectangle [x1, y1, x2, y2] in pixels.
type BoundingBox [4]float64

// Area returns |x2-x1| * |y2-y1|. Corner order does not matter.
func Area(b BoundingBox) float64 {
	return math.Abs(b[2]-b[0]) * math.Abs(b[3]-b[1])
}

// Area is a convenience wrapper around the package-level Area.
func (b BoundingBox) Area() float64 {
	return Area(b)
}

// Detection represents one object recognized by the detection backend.
type Detection struct {
	Object      string      `json:"object"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}
