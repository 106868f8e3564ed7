// Package geom provides the 2D vector and angle math shared by the swing
// and club analysis packages.
package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNoPoints is returned when an operation requires at least one point.
var ErrNoPoints = errors.New("no points")

// Point is a 2D point. Coordinates are normalized frame coordinates or
// pixels depending on the caller; the math is unit-agnostic.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// AngleBetween returns the interior angle at b formed by the rays b->a and
// b->c, in degrees within [0, 180].
func AngleBetween(a, b, c Point) float64 {
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// WrapDeg normalizes an angle in degrees to the half-open range (-180, 180].
func WrapDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

// AngularDeltaDeg returns the shortest signed rotation, in degrees, that
// carries the angle `from` onto the angle `to`.
func AngularDeltaDeg(from, to float64) float64 {
	return WrapDeg(to - from)
}

// Axis is the dominant direction of variance of a point set. The angle is
// ambiguous modulo 180 degrees: an axis has no head or tail. Callers that
// need a direction must resolve the ambiguity via Orient.
type Axis struct {
	AngleRad float64
	Centroid Point
}

// AngleDeg returns the axis angle in degrees.
func (ax Axis) AngleDeg() float64 {
	return ax.AngleRad * 180 / math.Pi
}

// Orient resolves the 180-degree ambiguity of the axis using an external
// reference point: the returned angle, in degrees within (-180, 180], is the
// axis direction that points away from `from`, i.e. the one within 90
// degrees of the ray from->centroid.
func (ax Axis) Orient(from Point) float64 {
	deg := WrapDeg(ax.AngleDeg())
	ref := math.Atan2(ax.Centroid.Y-from.Y, ax.Centroid.X-from.X) * 180 / math.Pi
	if math.Abs(AngularDeltaDeg(deg, ref)) > 90 {
		deg = WrapDeg(deg + 180)
	}
	return deg
}

// PrincipalAxis computes the principal axis of a finite point set: the
// mean-centered covariance matrix reduced to the dominant eigendirection via
// the closed form 0.5*atan2(2*cov_xy, cov_xx-cov_yy). Fewer than two points
// yield a zero-angle axis at the lone point's position.
func PrincipalAxis(points []Point) (Axis, error) {
	if len(points) == 0 {
		return Axis{}, ErrNoPoints
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}

	centroid := Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	if len(points) < 2 {
		return Axis{Centroid: centroid}, nil
	}

	// The covariance normalization cancels in the atan2 ratio, so the
	// sample estimator is as good as the population one here.
	covXX := stat.Variance(xs, nil)
	covYY := stat.Variance(ys, nil)
	covXY := stat.Covariance(xs, ys, nil)

	angle := 0.5 * math.Atan2(2*covXY, covXX-covYY)
	return Axis{AngleRad: angle, Centroid: centroid}, nil
}
