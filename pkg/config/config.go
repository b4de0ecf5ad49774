package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Settings is the immutable configuration value handed to every component.
// File-loadable keys carry koanf tags; the rest only exist as flags.
type Settings struct {
	Separator   string   `koanf:"separator"`
	MinSize     int64    `koanf:"min_size"`
	Threads     int      `koanf:"threads"`
	TrustDigest bool     `koanf:"trust_digest"`
	NoBraces    bool     `koanf:"no_braces"`
	Excludes    []string `koanf:"exclude"`
	Filter      string   `koanf:"filter"`

	Targets     []string `koanf:"-"`
	TargetFile  string   `koanf:"-"`
	Verbosity   int      `koanf:"-"`
	Raw         bool     `koanf:"-"`
	DryRun      bool     `koanf:"-"`
	Interactive bool     `koanf:"-"`
}

// Defaults returns the built-in settings before the config file and flags
// are applied.
func Defaults() *Settings {
	return &Settings{
		Separator: ";",
		MinSize:   1,
		Threads:   2,
	}
}

// DefaultPath is the XDG location of the optional config file.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "lndup", "config.yaml")
}

// DefaultLogPath is the XDG location of the rotated activity log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "lndup", "activity.log")
}

// Load merges the YAML config file at path into cfg. A missing file is only
// an error when the user named it explicitly; the XDG default is optional.
func Load(path string, explicit bool, cfg *Settings) error {
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return Wrap(err, "config file %q", path)
		}
		return nil
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(*cfg, "koanf"), nil); err != nil {
		return Wrap(err, "load config defaults")
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Wrap(err, "parse config file %q", path)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return Wrap(err, "unmarshal config file %q", path)
	}

	return nil
}

// Validate clamps numeric settings and rejects combinations the engine
// must never see.
func (s *Settings) Validate() error {
	if s.TargetFile != "" && len(s.Targets) > 0 {
		return Errorf("positional targets and --target-file are mutually exclusive")
	}
	if s.Separator == "" {
		return Errorf("separator must not be empty")
	}
	if s.MinSize < 1 {
		s.MinSize = 1
	}
	if s.Threads < 1 {
		s.Threads = 1
	}
	return nil
}
