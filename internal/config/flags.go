package config

import (
	"flag"
	"strconv"
)

// Flags holds command-line overrides. Zero values leave the config alone.
type Flags struct {
	ConfigPath  string
	Debug       bool
	Tolerance   *float64 // nil when not given
	Jobs        int
	Compression string
	FallbackDir string
	LogFile     string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Func("tolerance", "Weld position tolerance", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.Tolerance = &v
		return nil
	})
	fs.IntVar(&f.Jobs, "jobs", 0, "Number of models baked concurrently")
	fs.StringVar(&f.Compression, "compression", "", "Source compression: zstd or lz4")
	fs.StringVar(&f.FallbackDir, "fallback-dir", "", "Directory holding fallback textures")
	fs.StringVar(&f.LogFile, "log-file", "", "Also log to this file")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Tolerance != nil {
		cfg.Bake.Tolerance = *f.Tolerance
	}
	if f.Jobs > 0 {
		cfg.Bake.Jobs = f.Jobs
	}
	if f.Compression != "" {
		cfg.Bake.Compression = f.Compression
	}
	if f.FallbackDir != "" {
		cfg.Bake.FallbackDir = f.FallbackDir
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
}
