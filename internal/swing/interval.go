// Package swing isolates the active swing within a pose-frame capture and
// computes posture metrics over it. Everything here is a pure function over
// an immutable frame sequence: no state, safe to invoke repeatedly or
// concurrently.
package swing

import (
	"github.com/ayusman/swinglab/internal/geom"
	"github.com/ayusman/swinglab/internal/pose"
)

// Interval is the sub-range of a capture containing the active swing, in
// milliseconds, bounded by the originating frame sequence.
type Interval struct {
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
}

// Params holds the empirically tuned constants of the detector and the
// metrics analyzer. They were tuned against real captures, not derived, so
// they stay configurable rather than baked in.
type Params struct {
	// MinFrames is the minimum capture length for segmentation; shorter
	// captures fall back to the whole range.
	MinFrames int

	// ThresholdRatio scales the peak velocity into the low-activity
	// threshold.
	ThresholdRatio float64

	// BackwardRun and ForwardRun are the stability run lengths required
	// below threshold before a boundary is accepted.
	BackwardRun int
	ForwardRun  int

	// StartPadding and EndPadding extend the detected window to retain
	// the takeaway trigger and the finish.
	StartPadding int
	EndPadding   int

	// MinWindow is the minimum accepted window in frames; narrower scan
	// results are replaced by the symmetric fallback window.
	MinWindow int

	// FallbackHalfWindow is the half-width of the symmetric window forced
	// around the velocity peak when the scan result is too narrow.
	FallbackHalfWindow int

	// TrackedWrist is the landmark index whose velocity drives
	// segmentation (the trailing hand).
	TrackedWrist int

	// LeadingWrist and LeadingShoulder drive the arm-extension impact
	// proxy in the metrics analyzer.
	LeadingWrist    int
	LeadingShoulder int

	// MinMetricsFrames is the minimum capture length for metrics.
	MinMetricsFrames int

	// MinFilteredFrames guards against a pathological interval: fewer
	// surviving frames fall back to the unfiltered sequence.
	MinFilteredFrames int

	// CmPerUnit converts normalized displacement to approximate
	// centimeters, derived from an assumed average body width. A rough
	// approximation, not a calibrated measurement.
	CmPerUnit float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		MinFrames:          10,
		ThresholdRatio:     0.08,
		BackwardRun:        3,
		ForwardRun:         5,
		StartPadding:       15,
		EndPadding:         20,
		MinWindow:          30,
		FallbackHalfWindow: 45,
		TrackedWrist:       pose.RightWrist,
		LeadingWrist:       pose.LeftWrist,
		LeadingShoulder:    pose.LeftShoulder,
		MinMetricsFrames:   2,
		MinFilteredFrames:  6,
		CmPerUnit:          45.0,
	}
}

// DetectInterval locates the active swing in a pose-frame capture. The
// heuristic assumes a single dominant high-velocity event (impact) flanked
// by comparatively still address and finish postures; stability runs guard
// against brief velocity dips masquerading as boundaries.
func DetectInterval(frames []pose.Frame, p Params) Interval {
	if len(frames) == 0 {
		return Interval{}
	}
	if len(frames) < p.MinFrames {
		return Interval{StartMs: 0, EndMs: frames[len(frames)-1].TimestampMs}
	}

	vel := velocitySeries(frames, p.TrackedWrist)

	maxVelIndex := 0
	maxVel := vel[0]
	for i, v := range vel {
		if v > maxVel {
			maxVel = v
			maxVelIndex = i
		}
	}

	threshold := p.ThresholdRatio * maxVel
	lastIndex := len(frames) - 1

	startIndex := 0
	if i, ok := scanBackward(vel, maxVelIndex, threshold, p.BackwardRun); ok {
		startIndex = maxInt(0, i-p.StartPadding)
	}

	endIndex := lastIndex
	if i, ok := scanForward(vel, maxVelIndex, threshold, p.ForwardRun); ok {
		endIndex = minInt(lastIndex, i+p.EndPadding)
	}

	// Too narrow a window means the scan latched onto noise; force a
	// symmetric window around the peak instead.
	if endIndex-startIndex < p.MinWindow {
		startIndex = maxInt(0, maxVelIndex-p.FallbackHalfWindow)
		endIndex = minInt(lastIndex, maxVelIndex+p.FallbackHalfWindow)
	}

	return Interval{
		StartMs: frames[startIndex].TimestampMs,
		EndMs:   frames[endIndex].TimestampMs,
	}
}

// velocitySeries computes the per-step scalar velocity of one landmark:
// the Euclidean distance between consecutive frames' positions in
// normalized coordinates. A missing landmark on either side of a step
// yields zero.
func velocitySeries(frames []pose.Frame, landmark int) []float64 {
	vel := make([]float64, len(frames)-1)
	for i := range vel {
		prev, okPrev := frames[i].Landmark(landmark)
		next, okNext := frames[i+1].Landmark(landmark)
		if !okPrev || !okNext {
			continue
		}
		vel[i] = geom.Dist(prev.Point(), next.Point())
	}
	return vel
}

// scanBackward walks from the peak toward the capture start, looking for
// the first step below threshold whose preceding `run` steps are also all
// below it.
func scanBackward(vel []float64, from int, threshold float64, run int) (int, bool) {
	for i := from; i >= run; i-- {
		if vel[i] >= threshold {
			continue
		}
		stable := true
		for j := 1; j <= run; j++ {
			if vel[i-j] >= threshold {
				stable = false
				break
			}
		}
		if stable {
			return i, true
		}
	}
	return 0, false
}

// scanForward is the symmetric search toward the capture end.
func scanForward(vel []float64, from int, threshold float64, run int) (int, bool) {
	for i := from; i < len(vel)-run; i++ {
		if vel[i] >= threshold {
			continue
		}
		stable := true
		for j := 1; j <= run; j++ {
			if vel[i+j] >= threshold {
				stable = false
				break
			}
		}
		if stable {
			return i, true
		}
	}
	return 0, false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
