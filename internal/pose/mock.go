package pose

import (
	"gocv.io/x/gocv"
)

// MockSource is a test implementation of the Source interface. It allows
// tests to control the detection results.
type MockSource struct {
	landmarks []Landmark
	err       error
}

// NewMockSource creates a new MockSource instance.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// SetLandmarks sets the landmarks that will be returned by Detect.
func (m *MockSource) SetLandmarks(lm []Landmark) {
	m.landmarks = lm
}

// SetError sets the error that will be returned by Detect.
func (m *MockSource) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured landmarks or error.
func (m *MockSource) Detect(frame *gocv.Mat) ([]Landmark, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.landmarks, nil
}

// Close is a no-op for the mock source.
func (m *MockSource) Close() error {
	return nil
}

// AddressLandmarks returns a full 33-point landmark set for a golfer in a
// neutral address posture: upright spine, hands together in front of the
// hips.
func AddressLandmarks() []Landmark {
	lm := make([]Landmark, NumLandmarks)
	for i := range lm {
		lm[i].Visibility = 0.95
	}

	lm[Nose] = Landmark{X: 0.5, Y: 0.18, Visibility: 0.99}
	lm[LeftEye] = Landmark{X: 0.52, Y: 0.17, Visibility: 0.98}
	lm[RightEye] = Landmark{X: 0.48, Y: 0.17, Visibility: 0.98}
	lm[LeftEar] = Landmark{X: 0.54, Y: 0.18, Visibility: 0.9}
	lm[RightEar] = Landmark{X: 0.46, Y: 0.18, Visibility: 0.9}

	lm[LeftShoulder] = Landmark{X: 0.57, Y: 0.3, Visibility: 0.99}
	lm[RightShoulder] = Landmark{X: 0.43, Y: 0.3, Visibility: 0.99}
	lm[LeftElbow] = Landmark{X: 0.56, Y: 0.42, Visibility: 0.97}
	lm[RightElbow] = Landmark{X: 0.44, Y: 0.42, Visibility: 0.97}
	lm[LeftWrist] = Landmark{X: 0.52, Y: 0.52, Visibility: 0.96}
	lm[RightWrist] = Landmark{X: 0.48, Y: 0.52, Visibility: 0.96}

	lm[LeftHip] = Landmark{X: 0.55, Y: 0.58, Visibility: 0.99}
	lm[RightHip] = Landmark{X: 0.45, Y: 0.58, Visibility: 0.99}
	lm[LeftKnee] = Landmark{X: 0.55, Y: 0.76, Visibility: 0.95}
	lm[RightKnee] = Landmark{X: 0.45, Y: 0.76, Visibility: 0.95}
	lm[LeftAnkle] = Landmark{X: 0.55, Y: 0.93, Visibility: 0.92}
	lm[RightAnkle] = Landmark{X: 0.45, Y: 0.93, Visibility: 0.92}

	return lm
}

// SwingCapture synthesizes a capture of n frames at the given frame
// interval: a still address, a velocity burst of the trailing wrist around
// the midpoint, and a still finish. Useful for pipeline and end-to-end
// tests.
func SwingCapture(n int, frameMs float64) []Frame {
	frames := make([]Frame, n)
	impact := n / 2

	for i := range frames {
		lm := AddressLandmarks()

		// The trailing wrist sweeps fast through the impact zone and
		// barely moves elsewhere.
		offset := 0.001 * float64(i)
		if d := i - impact; d > -5 && d < 5 {
			offset += 0.08 * float64(5-absInt(d))
		}
		lm[RightWrist].X += offset
		lm[LeftWrist].X += offset * 0.9

		frames[i] = Frame{
			TimestampMs: float64(i) * frameMs,
			Landmarks:   lm,
		}
	}
	return frames
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
