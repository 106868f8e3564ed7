package swing

import (
	"errors"
	"math"

	"github.com/ayusman/swinglab/internal/geom"
	"github.com/ayusman/swinglab/internal/pose"
)

// ErrInsufficientData is returned when the capture is too short to analyze.
var ErrInsufficientData = errors.New("insufficient frames for swing metrics")

// SpineAngle reports the spine lean from vertical, in degrees, at the
// address and impact postures, and the change between them.
type SpineAngle struct {
	Address float64 `json:"address"`
	Impact  float64 `json:"impact"`
	Change  float64 `json:"change"`
}

// HeadMovement reports the maximum head displacement from the address
// position, in approximate centimeters.
type HeadMovement struct {
	Lateral  float64 `json:"lateral"`
	Vertical float64 `json:"vertical"`
}

// Metrics is the per-session posture summary. Derived and read-only:
// recompute it whenever the underlying frame set changes.
type Metrics struct {
	Spine    SpineAngle   `json:"spine_angle"`
	Head     HeadMovement `json:"head_movement"`
	Interval Interval     `json:"swing_interval"`
}

// Analyze computes swing metrics over a full capture. It isolates the
// swing interval first and measures posture within it. Pure function:
// unchanged input yields bit-identical output.
func Analyze(frames []pose.Frame, p Params) (*Metrics, error) {
	if len(frames) < p.MinMetricsFrames {
		return nil, ErrInsufficientData
	}

	interval := DetectInterval(frames, p)

	filtered := filterByInterval(frames, interval)
	if len(filtered) < p.MinFilteredFrames {
		// A pathological interval starves the analysis; fall back to the
		// whole capture.
		filtered = frames
	}

	addressIdx := addressFrame(filtered)
	impactIdx := impactFrame(filtered, p)

	var spine SpineAngle
	if addressIdx >= 0 && impactIdx >= 0 {
		addr := spineAngleAt(&filtered[addressIdx])
		imp := spineAngleAt(&filtered[impactIdx])
		spine = SpineAngle{
			Address: round1(addr),
			Impact:  round1(imp),
			Change:  round1(imp - addr),
		}
	}

	head := headMovement(filtered, addressIdx, p)

	return &Metrics{
		Spine:    spine,
		Head:     head,
		Interval: interval,
	}, nil
}

// filterByInterval keeps the frames whose timestamps fall inside the
// interval, inclusive.
func filterByInterval(frames []pose.Frame, iv Interval) []pose.Frame {
	var out []pose.Frame
	for i := range frames {
		ts := frames[i].TimestampMs
		if ts >= iv.StartMs && ts <= iv.EndMs {
			out = append(out, frames[i])
		}
	}
	return out
}

// addressFrame returns the index of the first frame carrying the torso
// landmarks the spine computation needs, or -1.
func addressFrame(frames []pose.Frame) int {
	for i := range frames {
		if frames[i].Valid(pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
			return i
		}
	}
	return -1
}

// impactFrame returns the index of the frame maximizing the distance
// between the leading wrist and its shoulder. Maximum arm extension is a
// proxy for the true impact moment, since ball contact is not observable
// from pose data. Frames missing either landmark do not contribute.
func impactFrame(frames []pose.Frame, p Params) int {
	best := -1
	bestDist := -1.0
	for i := range frames {
		wrist, okW := frames[i].Landmark(p.LeadingWrist)
		shoulder, okS := frames[i].Landmark(p.LeadingShoulder)
		if !okW || !okS {
			continue
		}
		if d := geom.Dist(wrist.Point(), shoulder.Point()); d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// spineAngleAt measures the lean, from vertical, of the hip-midpoint to
// shoulder-midpoint vector. dy is hip minus shoulder to compensate for the
// downward-increasing vertical axis, so a forward lean comes out positive.
func spineAngleAt(f *pose.Frame) float64 {
	ls, _ := f.Landmark(pose.LeftShoulder)
	rs, _ := f.Landmark(pose.RightShoulder)
	lh, _ := f.Landmark(pose.LeftHip)
	rh, _ := f.Landmark(pose.RightHip)

	shoulderMid := geom.Point{X: (ls.X + rs.X) / 2, Y: (ls.Y + rs.Y) / 2}
	hipMid := geom.Point{X: (lh.X + rh.X) / 2, Y: (lh.Y + rh.Y) / 2}

	dx := shoulderMid.X - hipMid.X
	dy := hipMid.Y - shoulderMid.Y
	return math.Atan2(dx, dy) * 180 / math.Pi
}

// headMovement measures the maximum absolute lateral and vertical nose
// displacement from the address position, scaled into approximate
// centimeters.
func headMovement(frames []pose.Frame, addressIdx int, p Params) HeadMovement {
	origin := geom.Point{}
	found := false

	if addressIdx >= 0 {
		if nose, ok := frames[addressIdx].Landmark(pose.Nose); ok {
			origin = nose.Point()
			found = true
		}
	}
	if !found {
		for i := range frames {
			if nose, ok := frames[i].Landmark(pose.Nose); ok {
				origin = nose.Point()
				found = true
				break
			}
		}
	}
	if !found {
		return HeadMovement{}
	}

	var maxLat, maxVert float64
	for i := range frames {
		nose, ok := frames[i].Landmark(pose.Nose)
		if !ok {
			continue
		}
		if lat := math.Abs(nose.X - origin.X); lat > maxLat {
			maxLat = lat
		}
		if vert := math.Abs(nose.Y - origin.Y); vert > maxVert {
			maxVert = vert
		}
	}

	return HeadMovement{
		Lateral:  round1(maxLat * p.CmPerUnit),
		Vertical: round1(maxVert * p.CmPerUnit),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
