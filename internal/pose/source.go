package pose

import "gocv.io/x/gocv"

// Source defines the interface for pose landmark providers. The upstream
// detector is a black box: it produces per-frame joint coordinates or an
// empty sequence when no body is visible. An empty or short sequence means
// "cannot analyze this frame," never a fatal error.
type Source interface {
	// Detect analyzes a video frame and returns the athlete's body
	// landmarks. Returns an empty slice if no body is detected.
	Detect(frame *gocv.Mat) ([]Landmark, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
