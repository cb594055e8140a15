package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Logging   LoggingConfig   `yaml:"logging"`
	Features  FeatureConfig   `yaml:"features"`
	Limits    LimitConfig     `yaml:"limits"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embeds    EmbedConfig     `yaml:"embeds"`
	Security  SecurityConfig  `yaml:"security"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	MaxBody SizeBytes `yaml:"max_body"`
	Beacon  struct {
		Addr   string `yaml:"addr"`
		Engine string `yaml:"engine"` // fasthttp | nethttp
	} `yaml:"beacon"`
}

// DBConfig locates the storage directory.
type DBConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// FeatureConfig holds the service kill-switches.
type FeatureConfig struct {
	MassMentionsEnabled bool `yaml:"mass_mentions_enabled"`
	GenerateEmbeds      bool `yaml:"generate_embeds"`
}

// LimitConfig holds the per-message resource caps.
type LimitConfig struct {
	MessageLength      int `yaml:"message_length"`
	MessageReplies     int `yaml:"message_replies"`
	MessageAttachments int `yaml:"message_attachments"`
	MessageEmbeds      int `yaml:"message_embeds"`
	MessageReactions   int `yaml:"message_reactions"`
	BulkDeleteMessages int `yaml:"bulk_delete_messages"`
}

// PipelineConfig tunes the send path and its fan-out queues.
type PipelineConfig struct {
	IdempotencyWindow Duration `yaml:"idempotency_window"`
	QueueCapacity     int      `yaml:"queue_capacity"`
	Workers           int      `yaml:"workers"`
}

// EmbedConfig points at the metadata sidecar used to build website
// embeds. An empty URL disables generation.
type EmbedConfig struct {
	ServiceURL string   `yaml:"service_url"`
	Timeout    Duration `yaml:"timeout"`
}

// SecurityConfig holds request hygiene settings.
type SecurityConfig struct {
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// RetentionConfig controls the scheduled sweeps.
type RetentionConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Cron            string   `yaml:"cron"`
	AttachmentGrace Duration `yaml:"attachment_grace"`
}

// Snapshot is the read-only feature/limit view handed to each pipeline
// invocation. Copy semantics keep a call immune to concurrent config
// reloads.
type Snapshot struct {
	Features FeatureConfig
	Limits   LimitConfig
}

// Snapshot captures the current features and limits by value.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{Features: c.Features, Limits: c.Limits}
}

// SizeBytes represents a number of bytes, unmarshaled from
// human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration with YAML parsing from strings like
// "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
