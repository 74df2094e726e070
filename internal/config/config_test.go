package config

import (
	"errors"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"

	m "github.com/Faultbox/meshbake/pkg/math"
	"github.com/Faultbox/meshbake/pkg/zstream"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test bake defaults
	if cfg.Bake.Tolerance != 1e-5 {
		t.Errorf("expected tolerance 1e-5, got %g", cfg.Bake.Tolerance)
	}
	if cfg.Bake.NormalEpsilon != 1e-4 {
		t.Errorf("expected normal epsilon 1e-4, got %g", cfg.Bake.NormalEpsilon)
	}
	if cfg.Bake.UVEpsilon != 1e-5 {
		t.Errorf("expected uv epsilon 1e-5, got %g", cfg.Bake.UVEpsilon)
	}
	if cfg.Bake.FallbackDir != "assets-src" {
		t.Errorf("expected fallback dir 'assets-src', got %s", cfg.Bake.FallbackDir)
	}
	if cfg.Bake.Jobs != 1 {
		t.Errorf("expected 1 job, got %d", cfg.Bake.Jobs)
	}
	if cfg.Format() != zstream.FormatZstd {
		t.Errorf("expected zstd compression, got %s", cfg.Bake.Compression)
	}
	if len(cfg.Models) != 0 {
		t.Errorf("expected no models, got %d", len(cfg.Models))
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlContent := `
bake:
  tolerance: 0.001
  normal_epsilon: 0.01
  fallback_dir: "fallbacks"
  jobs: 4
  compression: lz4

models:
  - input: assets-src/box/box.obj-zstd
    output: assets/box/box.bakedmesh
  - input: assets-src/sponza/sponza.obj-lz4
    output: assets/sponza/sponza.bakedmesh
    transform:
      translate: [0, -1, 0]
      scale: [0.01, 0.01, 0.01]

logging:
  level: "debug"
  log_file: "bake.log"
`
	tomlContent := `
[bake]
tolerance = 0.001
normal_epsilon = 0.01
fallback_dir = "fallbacks"
jobs = 4
compression = "lz4"

[[models]]
input = "assets-src/box/box.obj-zstd"
output = "assets/box/box.bakedmesh"

[[models]]
input = "assets-src/sponza/sponza.obj-lz4"
output = "assets/sponza/sponza.bakedmesh"
[models.transform]
translate = [0, -1, 0]
scale = [0.01, 0.01, 0.01]

[logging]
level = "debug"
log_file = "bake.log"
`

	for name, content := range map[string]string{"meshbake.yaml": yamlContent, "meshbake.toml": tomlContent} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, name)
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, configPath); err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if cfg.Bake.Tolerance != 0.001 {
				t.Errorf("expected tolerance 0.001, got %g", cfg.Bake.Tolerance)
			}
			if cfg.Bake.NormalEpsilon != 0.01 {
				t.Errorf("expected normal epsilon 0.01, got %g", cfg.Bake.NormalEpsilon)
			}
			// not in the file: default kept
			if cfg.Bake.UVEpsilon != 1e-5 {
				t.Errorf("expected default uv epsilon, got %g", cfg.Bake.UVEpsilon)
			}
			if cfg.Bake.Jobs != 4 {
				t.Errorf("expected 4 jobs, got %d", cfg.Bake.Jobs)
			}
			if cfg.Format() != zstream.FormatLZ4 {
				t.Errorf("expected lz4, got %s", cfg.Bake.Compression)
			}

			if len(cfg.Models) != 2 {
				t.Fatalf("expected 2 models, got %d", len(cfg.Models))
			}
			if cfg.Models[0].Output != "assets/box/box.bakedmesh" {
				t.Errorf("unexpected output %s", cfg.Models[0].Output)
			}
			if cfg.Models[0].Transform != nil {
				t.Error("expected no transform on first model")
			}
			xf := cfg.Models[1].Transform
			if xf == nil {
				t.Fatal("expected transform on second model")
			}
			if xf.Translate != [3]float32{0, -1, 0} {
				t.Errorf("unexpected translate %v", xf.Translate)
			}

			if cfg.Logging.Level != "debug" {
				t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
			}
			if cfg.Logging.LogFile != "bake.log" {
				t.Errorf("expected log file 'bake.log', got %s", cfg.Logging.LogFile)
			}
		})
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := map[string]string{
		"invalid.yaml": "bake:\n  tolerance: not a number\n  invalid syntax here\n",
		"invalid.toml": "[bake\ntolerance = = 1\n",
	}
	for name, content := range tests {
		configPath := filepath.Join(tmpDir, name)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg := Default()
		if err := loadFromFile(cfg, configPath); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/meshbake.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// TOML is found when it is the only candidate
	if err := os.WriteFile(filepath.Join(tmpDir, "meshbake.toml"), []byte("[bake]\njobs = 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./meshbake.toml" {
		t.Errorf("expected ./meshbake.toml, got %q", path)
	}

	// YAML wins over TOML
	if err := os.WriteFile(filepath.Join(tmpDir, "meshbake.yaml"), []byte("bake:\n  jobs: 3\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./meshbake.yaml" {
		t.Errorf("expected ./meshbake.yaml, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tol := 0.5

	tests := []struct {
		name   string
		flags  Flags
		verify func(*testing.T, *Config)
	}{
		{
			name:  "no flags",
			flags: Flags{},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Tolerance != 1e-5 {
					t.Errorf("expected default tolerance, got %g", cfg.Bake.Tolerance)
				}
			},
		},
		{
			name:  "debug flag",
			flags: Flags{Debug: true},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name:  "tolerance flag",
			flags: Flags{Tolerance: &tol},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Tolerance != 0.5 {
					t.Errorf("expected tolerance 0.5, got %g", cfg.Bake.Tolerance)
				}
			},
		},
		{
			name:  "jobs and compression flags",
			flags: Flags{Jobs: 8, Compression: "lz4"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Jobs != 8 {
					t.Errorf("expected 8 jobs, got %d", cfg.Bake.Jobs)
				}
				if cfg.Bake.Compression != "lz4" {
					t.Errorf("expected lz4, got %s", cfg.Bake.Compression)
				}
			},
		},
		{
			name:  "paths",
			flags: Flags{FallbackDir: "fb", LogFile: "x.log"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.FallbackDir != "fb" || cfg.Logging.LogFile != "x.log" {
					t.Errorf("unexpected paths %s, %s", cfg.Bake.FallbackDir, cfg.Logging.LogFile)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.flags.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	var f Flags
	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	f.Register(fs)

	if err := fs.Parse([]string{"-tolerance", "0", "-jobs", "2", "-config", "x.toml", "in.obj-zstd"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Tolerance == nil || *f.Tolerance != 0 {
		t.Errorf("expected explicit zero tolerance, got %v", f.Tolerance)
	}
	if f.Jobs != 2 || f.ConfigPath != "x.toml" {
		t.Errorf("unexpected flags %+v", f)
	}
	if fs.Arg(0) != "in.obj-zstd" {
		t.Errorf("expected positional arg, got %v", fs.Args())
	}

	if err := fs.Parse([]string{"-tolerance", "abc"}); err == nil {
		t.Error("expected error for non-numeric tolerance")
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meshbake.yaml")

	yamlContent := `
bake:
  tolerance: 0.25
  jobs: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(&Flags{ConfigPath: configPath, Jobs: 6})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Jobs should be from flag (6), not file (3)
	if cfg.Bake.Jobs != 6 {
		t.Errorf("expected 6 jobs from flag, got %d", cfg.Bake.Jobs)
	}
	// Tolerance should be from file since no flag override
	if cfg.Bake.Tolerance != 0.25 {
		t.Errorf("expected tolerance 0.25 from file, got %g", cfg.Bake.Tolerance)
	}
}

func TestLoadValidates(t *testing.T) {
	bad := -1.0
	_, err := Load(&Flags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if err == nil {
		t.Error("expected error for missing explicit config")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meshbake.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  compression: brotli\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(&Flags{ConfigPath: configPath}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown compression, got %v", err)
	}
	if _, err := Load(&Flags{ConfigPath: configPath, Compression: "zstd", Tolerance: &bad}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for negative tolerance, got %v", err)
	}
}

func TestValidateRejectsNonFiniteWeldSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NaN tolerance", func(c *Config) { c.Bake.Tolerance = math.NaN() }},
		{"infinite tolerance", func(c *Config) { c.Bake.Tolerance = math.Inf(1) }},
		{"NaN normal epsilon", func(c *Config) { c.Bake.NormalEpsilon = float32(math.NaN()) }},
		{"negative uv epsilon", func(c *Config) { c.Bake.UVEpsilon = -1 }},
		{"infinite uv epsilon", func(c *Config) { c.Bake.UVEpsilon = float32(math.Inf(1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadRejectsNaNToleranceFlag(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meshbake.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  jobs: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var flags Flags
	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	flags.Register(fs)
	if err := fs.Parse([]string{"-config", configPath, "-tolerance", "NaN"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(&flags); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for NaN tolerance, got %v", err)
	}

	yamlPath := filepath.Join(tmpDir, "nan.yaml")
	if err := os.WriteFile(yamlPath, []byte("bake:\n  tolerance: .nan\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(&Flags{ConfigPath: yamlPath}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for NaN tolerance in YAML, got %v", err)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Bake.Jobs = 5
	cfg.Models = []ModelConfig{{
		Input:     "a.obj-zstd",
		Output:    "a.bakedmesh",
		Transform: &TransformConfig{Scale: [3]float32{2, 2, 2}},
	}}

	for _, name := range []string{"out.yaml", "out.toml"} {
		path := filepath.Join(tmpDir, "sub", name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s): %v", name, err)
		}

		loaded := Default()
		if err := loadFromFile(loaded, path); err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		if loaded.Bake.Jobs != 5 || len(loaded.Models) != 1 {
			t.Errorf("%s: unexpected reload %+v", name, loaded)
		}
		if loaded.Models[0].Transform == nil || loaded.Models[0].Transform.Scale[0] != 2 {
			t.Errorf("%s: transform not saved", name)
		}
	}
}

func TestTransformMatrix(t *testing.T) {
	var nilXf *TransformConfig
	if !nilXf.Matrix().IsIdentity() {
		t.Error("nil transform should be identity")
	}

	xf := &TransformConfig{Translate: [3]float32{1, 2, 3}}
	p := xf.Matrix().TransformPoint(m.Vec3{X: 1, Y: 1, Z: 1})
	if p != (m.Vec3{X: 2, Y: 3, Z: 4}) {
		t.Errorf("zero scale should mean 1, got %v", p)
	}
}
