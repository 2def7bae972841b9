// Package viz records simulation geometry to visualization sinks.
package viz

import (
	"fmt"
	"image/color"
)

// Point is a point in a plane
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Payload is a visualization record payload: Path, Scatter or Polyline
type Payload interface {
	// Kind returns payload kind
	Kind() string
	// Points returns payload points
	Points() []Point
}

// Path is an ordered sequence of points, e.g. a trajectory
type Path struct {
	Pts []Point
}

// Kind implements Payload
func (p Path) Kind() string { return "path" }

// Points implements Payload
func (p Path) Points() []Point { return p.Pts }

// Scatter is a set of points drawn with the same color and radius
type Scatter struct {
	Pts    []Point
	Color  color.RGBA
	Radius float64
}

// Kind implements Payload
func (s Scatter) Kind() string { return "scatter" }

// Points implements Payload
func (s Scatter) Points() []Point { return s.Pts }

// Polyline is a colored line strip
type Polyline struct {
	Pts   []Point
	Color color.RGBA
}

// Kind implements Payload
func (l Polyline) Kind() string { return "polyline" }

// Points implements Payload
func (l Polyline) Points() []Point { return l.Pts }

// PointsToPolyline zips xs and ys into a sequence of points.
// It returns error if xs and ys differ in length.
func PointsToPolyline(xs, ys []float64) ([]Point, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("coordinate length mismatch: %d != %d", len(xs), len(ys))
	}

	pts := make([]Point, len(xs))
	for i := range xs {
		pts[i] = Point{X: xs[i], Y: ys[i]}
	}

	return pts, nil
}
