// Package config loads the server/CLI's single YAML configuration
// document into a plain Go struct.
//
// Unmarshalling uses gopkg.in/yaml.v3. This config is a fixed struct with
// defaults applied after unmarshal, not a runtime-discoverable property
// tree.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mp4engine/internal/errs"
)

// Config is the server/CLI's full set of knobs.
type Config struct {
	// Listen is the address the HTTP server binds to, e.g. ":8080".
	Listen string `yaml:"listen"`
	// CacheCapacity bounds how many source files the Cache keeps open
	// concurrently.
	CacheCapacity int `yaml:"cache_capacity"`
	// ReadConcurrency is loaded and kept as given, 0 included; nothing in
	// this module passes it to an ioread.Pool.
	ReadConcurrency int `yaml:"read_concurrency"`
	// SegmentDuration is the target HLS/CMAF segment length.
	SegmentDuration time.Duration `yaml:"segment_duration"`
	// InterleaveWindow is the Rewriter's rolling interleave bucket size;
	// 0 turns re-interleaving off (each track is written as one contiguous
	// run; the source's chunk layout is not kept), distinct from an unset field
	// (which keeps Default's 500ms — see applyDefaults).
	InterleaveWindow time.Duration `yaml:"interleave_window"`
	// SafariPartialResponseCap bounds bytes served per Range request to
	// a Safari user agent.
	SafariPartialResponseCap int64 `yaml:"safari_partial_response_cap"`
	// LogLevel is a zerolog level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration this engine runs with when no YAML
// document supplies a value.
func Default() Config {
	return Config{
		Listen:                   ":8080",
		CacheCapacity:            64,
		ReadConcurrency:          0,
		SegmentDuration:          4 * time.Second,
		InterleaveWindow:         500 * time.Millisecond,
		SafariPartialResponseCap: 2 << 20,
		LogLevel:                 "info",
	}
}

// Load reads path as YAML into a Config, starting from Default and
// overwriting whatever the document sets explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errs.Wrap(errs.Io, "read config file", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Wrap(errs.Malformed, "parse config yaml", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults fills in zero-valued fields a YAML document left unset;
// yaml.v3 has no "hasDefault" tag, so this runs after Unmarshal rather
// than during it. InterleaveWindow and ReadConcurrency are deliberately
// excluded: Load already pre-seeds cfg with Default() before unmarshalling,
// so a document that omits either field keeps its Default() value, while
// one that sets it to 0 keeps 0 (for InterleaveWindow: no re-interleaving)
// rather than being reset to a default here.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Listen == "" {
		cfg.Listen = d.Listen
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = d.CacheCapacity
	}
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = d.SegmentDuration
	}
	if cfg.SafariPartialResponseCap == 0 {
		cfg.SafariPartialResponseCap = d.SafariPartialResponseCap
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
}
