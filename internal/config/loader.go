package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ayusman/swinglab/internal/club"
	"github.com/ayusman/swinglab/internal/swing"
)

// Load builds a Config by layering defaults, an optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SWINGLAB_CONFIG is set
//  3. env (prefix SWINGLAB_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SWINGLAB_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: SWINGLAB_ADDR, SWINGLAB_MODEL_PATH, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("SWINGLAB_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "swinglab_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.InputSize <= 0 {
		return nil, errors.New("input_size must be positive")
	}
	if cfg.EMAWeight <= 0 || cfg.EMAWeight > 1 {
		return nil, errors.New("ema_weight must be in (0, 1]")
	}
	return &cfg, nil
}

// SwingParams maps the configuration onto the swing package's tunables.
func (c *Config) SwingParams() swing.Params {
	p := swing.DefaultParams()
	p.ThresholdRatio = c.VelocityThresholdRatio
	p.StartPadding = c.StartPadding
	p.EndPadding = c.EndPadding
	p.MinWindow = c.MinWindow
	p.FallbackHalfWindow = c.FallbackHalfWindow
	p.CmPerUnit = c.CmPerUnit
	return p
}

// ClubParams maps the configuration onto the club package's tunables.
func (c *Config) ClubParams() club.Params {
	p := club.DefaultParams()
	p.InputSize = c.InputSize
	p.ConfThreshold = c.ConfThreshold
	p.EMAWeight = c.EMAWeight
	return p
}
