// Package pose provides body landmark types and pose source implementations
// for swing analysis.
package pose

import (
	"github.com/ayusman/swinglab/internal/club"
	"github.com/ayusman/swinglab/internal/geom"
)

// Body landmark indices following the MediaPipe BlazePose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Landmark is one body joint in normalized frame coordinates (0..1), with
// depth and an optional detector confidence.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Point returns the landmark's 2D position.
func (l Landmark) Point() geom.Point {
	return geom.Point{X: l.X, Y: l.Y}
}

// Frame is one timestamped snapshot of all tracked landmarks. Frames are
// appended once per session and never mutated afterwards, except to attach
// a club estimate during post-processing.
type Frame struct {
	TimestampMs float64        `json:"timestamp_ms"`
	Landmarks   []Landmark     `json:"landmarks"`
	Club        *club.Estimate `json:"club,omitempty"`
}

// Landmark returns the landmark at the given index and whether it is
// present. A frame shorter than the index scheme means the detector did not
// produce that joint.
func (f *Frame) Landmark(idx int) (Landmark, bool) {
	if idx < 0 || idx >= len(f.Landmarks) {
		return Landmark{}, false
	}
	return f.Landmarks[idx], true
}

// Valid reports whether every given landmark index is present in the frame.
func (f *Frame) Valid(indices ...int) bool {
	for _, idx := range indices {
		if idx < 0 || idx >= len(f.Landmarks) {
			return false
		}
	}
	return true
}

// HasClubContext reports whether the frame carries the wrist and elbow
// landmarks the club orientation resolver needs. A club estimate may be
// attached to a frame only when this holds.
func (f *Frame) HasClubContext() bool {
	return f.Valid(LeftWrist, RightWrist, LeftElbow, RightElbow)
}

// HandsMidpoint returns the midpoint of both wrists. The second return is
// false when either wrist landmark is missing.
func (f *Frame) HandsMidpoint() (geom.Point, bool) {
	lw, ok := f.Landmark(LeftWrist)
	if !ok {
		return geom.Point{}, false
	}
	rw, ok := f.Landmark(RightWrist)
	if !ok {
		return geom.Point{}, false
	}
	return geom.Point{X: (lw.X + rw.X) / 2, Y: (lw.Y + rw.Y) / 2}, true
}
