// Package club estimates the orientation of the golf club in a video frame
// from a detection/segmentation model output, with a geometric fallback and
// temporal smoothing.
package club

import "github.com/ayusman/swinglab/internal/geom"

// Estimate is the resolved club orientation for one frame. The angle is in
// degrees within (-180, 180], measured in source-frame pixel space with Y
// increasing downwards. Score is the detection confidence in 0..1.
// DebugPoint is the image point the angle was anchored on (mask centroid or
// fallback corner), useful for overlay debugging.
type Estimate struct {
	Angle      float64     `json:"angle"`
	Score      float64     `json:"score"`
	DebugPoint *geom.Point `json:"debug_point,omitempty"`
}

// Params holds the tunable constants of the decode and resolve pipeline.
type Params struct {
	// InputSize is the square model input resolution in pixels.
	InputSize int

	// ConfThreshold is the minimum per-class detection confidence.
	ConfThreshold float64

	// MaskThreshold is the sigmoid cutoff for mask foreground pixels.
	MaskThreshold float64

	// MinMaskPoints is the minimum number of foreground pixels required
	// to trust the segmentation path over the shaft fallback.
	MinMaskPoints int

	// EMAWeight is the blend weight of a new angle sample against the
	// previous resolved angle.
	EMAWeight float64

	// ShaftScorePenalty scales the confidence of estimates produced by
	// the coarser shaft-box fallback.
	ShaftScorePenalty float64
}

// DefaultParams returns the tuned defaults for the exported club model.
func DefaultParams() Params {
	return Params{
		InputSize:         320,
		ConfThreshold:     0.25,
		MaskThreshold:     0.5,
		MinMaskPoints:     3,
		EMAWeight:         0.3,
		ShaftScorePenalty: 0.8,
	}
}
