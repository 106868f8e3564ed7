package club

import (
	"math"
	"testing"

	"github.com/ayusman/swinglab/internal/geom"
)

// maskLine builds mask points along a line at the given angle (degrees),
// starting well away from the origin so that orientation away from hands at
// (0,0) preserves the angle.
func maskLine(angleDeg float64, n int) []geom.Point {
	rad := angleDeg * math.Pi / 180
	points := make([]geom.Point, n)
	for i := range points {
		t := 50 + float64(i)
		points[i] = geom.Point{X: t * math.Cos(rad), Y: t * math.Sin(rad)}
	}
	return points
}

func headDecoded(angleDeg float64, n int) Decoded {
	return Decoded{
		Head:       &Detection{Class: ClassHead, Score: 0.9},
		MaskPoints: maskLine(angleDeg, n),
	}
}

func TestResolver_MaskPath(t *testing.T) {
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	est := r.Resolve(headDecoded(30, 10), lb, hands)
	if est == nil {
		t.Fatal("expected an estimate from the mask path")
	}
	if math.Abs(est.Angle-30) > 1 {
		t.Errorf("expected angle 30 +/- 1, got %f", est.Angle)
	}
	if est.Score != 0.9 {
		t.Errorf("expected detection score 0.9, got %f", est.Score)
	}
	if est.DebugPoint == nil {
		t.Error("expected the mask centroid as debug point")
	}
}

func TestResolver_Disambiguation(t *testing.T) {
	// The same pixel line seen from the opposite side must flip by 180.
	lb := identityLetterbox(320)

	r := NewResolver(DefaultParams())
	est := r.Resolve(headDecoded(0, 10), lb, geom.Point{X: 0, Y: 0})
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(est.Angle) > 1 {
		t.Errorf("expected angle 0, got %f", est.Angle)
	}

	r2 := NewResolver(DefaultParams())
	est2 := r2.Resolve(headDecoded(0, 10), lb, geom.Point{X: 200, Y: 0})
	if est2 == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(math.Abs(est2.Angle)-180) > 1 {
		t.Errorf("expected angle +/-180, got %f", est2.Angle)
	}
}

func TestResolver_EMABoundedStep(t *testing.T) {
	p := DefaultParams()
	r := NewResolver(p)
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	first := r.Resolve(headDecoded(10, 10), lb, hands)
	if first == nil {
		t.Fatal("expected an estimate")
	}

	// A jump to 70 degrees may move the smoothed angle by at most
	// weight * shortest delta.
	second := r.Resolve(headDecoded(70, 10), lb, hands)
	if second == nil {
		t.Fatal("expected an estimate")
	}

	step := math.Abs(geom.AngularDeltaDeg(first.Angle, second.Angle))
	maxStep := p.EMAWeight*math.Abs(geom.AngularDeltaDeg(first.Angle, 70)) + 1
	if step > maxStep {
		t.Errorf("smoothing step %f exceeds bound %f", step, maxStep)
	}
}

func TestResolver_EMAConverges(t *testing.T) {
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	r.Resolve(headDecoded(0, 10), lb, hands)

	var last *Estimate
	for i := 0; i < 40; i++ {
		last = r.Resolve(headDecoded(60, 10), lb, hands)
	}
	if last == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(last.Angle-60) > 1 {
		t.Errorf("expected convergence to 60, got %f", last.Angle)
	}
}

func TestResolver_EMAWraparound(t *testing.T) {
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	r.Resolve(headDecoded(175, 10), lb, hands)
	est := r.Resolve(headDecoded(-175, 10), lb, hands)
	if est == nil {
		t.Fatal("expected an estimate")
	}

	// Short way around is +10 degrees through the seam, so the blended
	// angle must sit between 175 and 180 or wrap just past -180, never
	// near 0.
	if math.Abs(est.Angle) < 90 {
		t.Errorf("smoothing took the long way around the seam: %f", est.Angle)
	}
}

func TestResolver_FewMaskPixelsFallsBack(t *testing.T) {
	// A head detection whose mask decoded to fewer than MinMaskPoints must
	// not produce a head-based estimate; the shaft fallback takes over.
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 100, Y: 100}

	dec := Decoded{
		Head:       &Detection{Class: ClassHead, Score: 0.9},
		MaskPoints: maskLine(30, 2),
		Shaft:      &Detection{Class: ClassShaft, Score: 0.5, Box: [4]float64{150, 100, 250, 120}},
	}

	est := r.Resolve(dec, lb, hands)
	if est == nil {
		t.Fatal("expected a fallback estimate")
	}
	if math.Abs(est.Score-0.5*0.8) > 1e-9 {
		t.Errorf("expected penalized shaft score 0.4, got %f", est.Score)
	}
}

func TestResolver_ShaftFarthestCorner(t *testing.T) {
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	dec := Decoded{
		Shaft: &Detection{Class: ClassShaft, Score: 0.6, Box: [4]float64{10, 10, 110, 60}},
	}

	est := r.Resolve(dec, lb, hands)
	if est == nil {
		t.Fatal("expected a shaft estimate")
	}

	// Farthest corner from the origin is (110, 60).
	if est.DebugPoint == nil || est.DebugPoint.X != 110 || est.DebugPoint.Y != 60 {
		t.Errorf("expected corner (110,60), got %+v", est.DebugPoint)
	}
	want := math.Atan2(60, 110) * 180 / math.Pi
	if math.Abs(est.Angle-want) > 1e-9 {
		t.Errorf("expected angle %f, got %f", want, est.Angle)
	}
}

func TestResolver_NoDetectionsEmitsNothing(t *testing.T) {
	r := NewResolver(DefaultParams())

	if est := r.Resolve(Decoded{}, identityLetterbox(320), geom.Point{}); est != nil {
		t.Errorf("expected no estimate, got %+v", est)
	}
}

func TestResolver_ResetClearsSmoothing(t *testing.T) {
	r := NewResolver(DefaultParams())
	lb := identityLetterbox(320)
	hands := geom.Point{X: 0, Y: 0}

	r.Resolve(headDecoded(90, 10), lb, hands)
	r.Reset()

	// After reset the first sample passes through unblended.
	est := r.Resolve(headDecoded(-40, 10), lb, hands)
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(est.Angle-(-40)) > 1 {
		t.Errorf("expected raw angle -40 after reset, got %f", est.Angle)
	}
}
