package config

import (
	"fmt"
	"time"
)

// Config represents a sift.yaml configuration file.
// All values are optional and act as defaults for sift triage flags.
// CLI flags always override config values.
type Config struct {
	Library string        `yaml:"library"`
	Source  SourceConfig  `yaml:"source"`
	Store   StoreConfig   `yaml:"store"`
	Feed    FeedConfig    `yaml:"feed"`
	Preload PreloadConfig `yaml:"preload"`
	Cache   CacheConfig   `yaml:"cache"`
	Gesture GestureConfig `yaml:"gesture"`
	Adapter AdapterConfig `yaml:"adapter"`
	Session SessionConfig `yaml:"session"`
}

// SourceConfig selects and configures the asset source backend.
type SourceConfig struct {
	// Backend is one of: dir, s3.
	Backend string `yaml:"backend"`
	// Path is the media root for the dir backend.
	Path string `yaml:"path"`
	// Kind filters enumeration to image or video; empty means both.
	Kind string `yaml:"kind,omitempty"`

	// S3 settings.
	Bucket      string `yaml:"bucket,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	S3PathStyle bool   `yaml:"s3_path_style,omitempty"`
}

// StoreConfig selects and configures the decision store backend.
type StoreConfig struct {
	// Backend is one of: sqlite, memory.
	Backend string `yaml:"backend"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// FeedConfig holds feed machine tuning.
type FeedConfig struct {
	InitialBatch          int  `yaml:"initial_batch"`
	BackfillBatch         int  `yaml:"backfill_batch"`
	BufferThreshold       int  `yaml:"buffer_threshold"`
	MaxBackwardNavigation int  `yaml:"max_backward_navigation"`
	Shuffle               bool `yaml:"shuffle"`
}

// PreloadConfig holds preload scheduler tuning.
type PreloadConfig struct {
	BackSpan    int `yaml:"back_span"`
	ForwardSpan int `yaml:"forward_span"`
	Parallel    int `yaml:"parallel"`
}

// CacheConfig holds media cache tuning.
type CacheConfig struct {
	PerTierCapacity int `yaml:"per_tier_capacity"`
}

// GestureConfig holds gesture interpreter tuning. Zero values use the
// interpreter defaults.
type GestureConfig struct {
	DirectionThreshold       float64  `yaml:"direction_threshold,omitempty"`
	DirectionRatio           float64  `yaml:"direction_ratio,omitempty"`
	HorizontalCommitFraction float64  `yaml:"horizontal_commit_fraction,omitempty"`
	VerticalCommitFraction   float64  `yaml:"vertical_commit_fraction,omitempty"`
	ZoomMax                  float64  `yaml:"zoom_max,omitempty"`
	ZoomGrace                Duration `yaml:"zoom_grace,omitempty"`
}

// AdapterConfig holds decision adapter defaults from the config file.
type AdapterConfig struct {
	// Type is one of: webhook, redis. Empty disables publishing.
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// SessionConfig holds session snapshot settings.
type SessionConfig struct {
	// SnapshotPath is where the resume snapshot is written. Empty
	// disables snapshots.
	SnapshotPath string `yaml:"snapshot_path"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks cross-field constraints the YAML schema cannot
// express. Zero-valued tuning fields are fine (components apply their
// own defaults); backend selections must be coherent.
func (c *Config) Validate() error {
	switch c.Source.Backend {
	case "", "dir":
		// dir accepts an empty path and falls back to the CWD.
	case "s3":
		if c.Source.Bucket == "" {
			return fmt.Errorf("source backend s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unknown source backend %q", c.Source.Backend)
	}

	switch c.Store.Backend {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend sqlite requires a path")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Source.Kind {
	case "", "image", "video":
	default:
		return fmt.Errorf("unknown media kind %q", c.Source.Kind)
	}

	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("unknown adapter type %q", c.Adapter.Type)
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		return fmt.Errorf("adapter type %q requires a url", c.Adapter.Type)
	}

	if c.Feed.BufferThreshold > 0 && c.Feed.BackfillBatch > 0 &&
		c.Feed.BufferThreshold >= c.Feed.BackfillBatch {
		return fmt.Errorf("buffer_threshold (%d) must be smaller than backfill_batch (%d)",
			c.Feed.BufferThreshold, c.Feed.BackfillBatch)
	}

	return nil
}
