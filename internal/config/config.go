// Package config handles bake configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"

	m "github.com/Faultbox/meshbake/pkg/math"
	"github.com/Faultbox/meshbake/pkg/weld"
	"github.com/Faultbox/meshbake/pkg/zstream"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all bake settings.
type Config struct {
	Bake    BakeConfig    `yaml:"bake" toml:"bake"`
	Models  []ModelConfig `yaml:"models" toml:"models"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// BakeConfig holds the pipeline settings shared by all models.
type BakeConfig struct {
	Tolerance     float64 `yaml:"tolerance" toml:"tolerance"`           // Weld position tolerance
	NormalEpsilon float32 `yaml:"normal_epsilon" toml:"normal_epsilon"` // Per-component normal agreement
	UVEpsilon     float32 `yaml:"uv_epsilon" toml:"uv_epsilon"`         // Per-component uv agreement
	FallbackDir   string  `yaml:"fallback_dir" toml:"fallback_dir"`     // Where fallback textures live
	Jobs          int     `yaml:"jobs" toml:"jobs"`                     // Models baked concurrently
	Compression   string  `yaml:"compression" toml:"compression"`       // zstd or lz4
}

// ModelConfig names one model to bake.
type ModelConfig struct {
	Input     string           `yaml:"input" toml:"input"`   // .obj-zstd or .obj-lz4
	Output    string           `yaml:"output" toml:"output"` // .bakedmesh
	Transform *TransformConfig `yaml:"transform,omitempty" toml:"transform,omitempty"`
}

// TransformConfig is applied to a model before welding.
type TransformConfig struct {
	Translate [3]float32 `yaml:"translate" toml:"translate"`
	Rotate    [3]float32 `yaml:"rotate" toml:"rotate"` // degrees, X then Y then Z
	Scale     [3]float32 `yaml:"scale" toml:"scale"`   // zero means 1
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			Tolerance:     weld.DefaultTolerance,
			NormalEpsilon: weld.DefaultNormalEpsilon,
			UVEpsilon:     weld.DefaultUVEpsilon,
			FallbackDir:   "assets-src",
			Jobs:          1,
			Compression:   zstream.FormatZstd.String(),
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// WeldOptions returns the welding thresholds.
func (c *Config) WeldOptions() weld.Options {
	return weld.Options{
		Tolerance:     c.Bake.Tolerance,
		NormalEpsilon: c.Bake.NormalEpsilon,
		UVEpsilon:     c.Bake.UVEpsilon,
	}
}

// Format returns the compression format for sources.
func (c *Config) Format() zstream.Format {
	f, err := zstream.ParseFormat(c.Bake.Compression)
	if err != nil {
		return zstream.FormatZstd
	}
	return f
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"tolerance", c.Bake.Tolerance},
		{"normal_epsilon", float64(c.Bake.NormalEpsilon)},
		{"uv_epsilon", float64(c.Bake.UVEpsilon)},
	} {
		if v.value < 0 || math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s must be a finite non-negative number, got %g", ErrInvalidConfig, v.name, v.value)
		}
	}
	if c.Bake.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidConfig, c.Bake.Jobs)
	}
	if _, err := zstream.ParseFormat(c.Bake.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for i, mc := range c.Models {
		if mc.Input == "" || mc.Output == "" {
			return fmt.Errorf("%w: model %d needs input and output", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Matrix returns the transform as a matrix; a nil transform is the identity.
func (t *TransformConfig) Matrix() m.Mat4 {
	if t == nil {
		return m.Identity()
	}
	scale := m.Vec3{X: t.Scale[0], Y: t.Scale[1], Z: t.Scale[2]}
	if scale == (m.Vec3{}) {
		scale = m.Vec3{X: 1, Y: 1, Z: 1}
	}
	return m.Compose(
		m.Vec3{X: t.Translate[0], Y: t.Translate[1], Z: t.Translate[2]},
		m.Vec3{X: t.Rotate[0], Y: t.Rotate[1], Z: t.Rotate[2]},
		scale,
	)
}
