package club

import (
	"math"

	"github.com/ayusman/swinglab/internal/geom"
)

// Resolver turns decoded detections into a single club angle per frame.
// It carries the previous resolved angle for temporal smoothing, which
// makes frame processing a strict sequential dependency: a Resolver belongs
// to exactly one analysis session and must be constructed fresh (or Reset)
// when a new session begins. Carrying the angle across sessions bleeds
// state between unrelated videos.
type Resolver struct {
	params    Params
	lastAngle float64
	hasLast   bool
}

// NewResolver creates a Resolver with the given parameters.
func NewResolver(p Params) *Resolver {
	return &Resolver{params: p}
}

// Reset clears the smoothing state for a new session.
func (r *Resolver) Reset() {
	r.lastAngle = 0
	r.hasLast = false
}

// Resolve produces the club estimate for one frame, or nil when neither
// class yields a usable signal. A nil result is a gap in the angle series,
// distinct from an estimate at angle zero.
//
// The cascade: a head mask with enough foreground pixels wins and is
// smoothed against the previous angle; otherwise the shaft box's farthest
// corner from the hands approximates the club head at a confidence
// penalty; otherwise no estimate. `hands` is the wrists' midpoint in
// source-frame pixel coordinates.
func (r *Resolver) Resolve(dec Decoded, lb Letterbox, hands geom.Point) *Estimate {
	if dec.Head != nil && len(dec.MaskPoints) >= r.params.MinMaskPoints {
		return r.resolveFromMask(dec, hands)
	}
	if dec.Shaft != nil {
		return r.resolveFromShaft(dec.Shaft, lb, hands)
	}
	return nil
}

// resolveFromMask fits the principal axis of the head mask pixels, orients
// it away from the hands, and blends with the previous resolved angle.
func (r *Resolver) resolveFromMask(dec Decoded, hands geom.Point) *Estimate {
	axis, err := geom.PrincipalAxis(dec.MaskPoints)
	if err != nil {
		return nil
	}

	raw := axis.Orient(hands)
	smoothed := r.smooth(raw)

	centroid := axis.Centroid
	return &Estimate{
		Angle:      smoothed,
		Score:      dec.Head.Score,
		DebugPoint: &centroid,
	}
}

// resolveFromShaft maps the shaft box corners into source coordinates and
// points the angle at the corner farthest from the hands, on the assumption
// that the club extends away from the grip.
func (r *Resolver) resolveFromShaft(det *Detection, lb Letterbox, hands geom.Point) *Estimate {
	corners := [4]geom.Point{
		lb.ToSource(geom.Point{X: det.Box[0], Y: det.Box[1]}),
		lb.ToSource(geom.Point{X: det.Box[2], Y: det.Box[1]}),
		lb.ToSource(geom.Point{X: det.Box[0], Y: det.Box[3]}),
		lb.ToSource(geom.Point{X: det.Box[2], Y: det.Box[3]}),
	}

	far := corners[0]
	farDist := geom.Dist(hands, far)
	for _, c := range corners[1:] {
		if d := geom.Dist(hands, c); d > farDist {
			far = c
			farDist = d
		}
	}

	angle := math.Atan2(far.Y-hands.Y, far.X-hands.X) * 180 / math.Pi
	r.lastAngle = angle
	r.hasLast = true

	return &Estimate{
		Angle:      angle,
		Score:      det.Score * r.params.ShaftScorePenalty,
		DebugPoint: &far,
	}
}

// smooth blends a new angle sample with the previous resolved angle using
// an exponential moving average over the shortest angular delta, so a jump
// across the +/-180 seam never takes the long way around.
func (r *Resolver) smooth(raw float64) float64 {
	if !r.hasLast {
		r.lastAngle = raw
		r.hasLast = true
		return raw
	}

	delta := geom.AngularDeltaDeg(r.lastAngle, raw)
	r.lastAngle = geom.WrapDeg(r.lastAngle + r.params.EMAWeight*delta)
	return r.lastAngle
}
