// Package config defines the runtime configuration of the swinglab service
// and its layered loading.
package config

import (
	"os"
	"path/filepath"
)

// Config contains process configuration. The analysis thresholds live here
// rather than as package constants: they were tuned empirically and need to
// stay adjustable per deployment.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database location.
	DBPath string `koanf:"db_path"`

	// ModelPath points at the exported club segmentation model (ONNX).
	// Empty disables club orientation estimation.
	ModelPath string `koanf:"model_path"`

	// InputSize is the square model input resolution.
	InputSize int `koanf:"input_size"`

	// ConfThreshold is the minimum detection confidence.
	ConfThreshold float64 `koanf:"conf_threshold"`

	// EMAWeight blends each new club angle with the previous one.
	EMAWeight float64 `koanf:"ema_weight"`

	// Interval detector tunables.
	VelocityThresholdRatio float64 `koanf:"velocity_threshold_ratio"`
	StartPadding           int     `koanf:"start_padding"`
	EndPadding             int     `koanf:"end_padding"`
	MinWindow              int     `koanf:"min_window"`
	FallbackHalfWindow     int     `koanf:"fallback_half_window"`

	// CmPerUnit converts normalized head displacement into approximate
	// centimeters.
	CmPerUnit float64 `koanf:"cm_per_unit"`
}

// New returns a Config populated with defaults.
func New() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Addr:                   ":8080",
		DBPath:                 filepath.Join(home, ".swinglab", "swinglab.db"),
		ModelPath:              "",
		InputSize:              320,
		ConfThreshold:          0.25,
		EMAWeight:              0.3,
		VelocityThresholdRatio: 0.08,
		StartPadding:           15,
		EndPadding:             20,
		MinWindow:              30,
		FallbackHalfWindow:     45,
		CmPerUnit:              45.0,
	}
}
