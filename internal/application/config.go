// Package application holds the Clarvoy services and the configuration that
// wires them together.
package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clarvoy/clarvoy/infrastructure/storage"
	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/telemetry"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig       `koanf:"server" yaml:"server"`
	Storage     StorageConfig      `koanf:"storage" yaml:"storage"`
	Noise       domain.NoiseConfig `koanf:"noise" yaml:"noise"`
	Coaching    CoachingConfig     `koanf:"coaching" yaml:"coaching"`
	Attachments AttachmentsConfig  `koanf:"attachments" yaml:"attachments"`
	Logging     logging.Config     `koanf:"logging" yaml:"logging"`
	Telemetry   telemetry.Config   `koanf:"telemetry" yaml:"telemetry"`
	Metrics     MetricsConfig      `koanf:"metrics" yaml:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr" yaml:"addr" validate:"required"`

	ReadTimeout time.Duration `koanf:"read_timeout" yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout must cover CoachingConfig.WorstCase so a retried chat
	// can still flush its stream. Zero disables the deadline.
	WriteTimeout time.Duration `koanf:"write_timeout" yaml:"write_timeout" validate:"gte=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`

	// BodyLimit is an echo size string such as "2M".
	BodyLimit string `koanf:"body_limit" yaml:"body_limit"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver   string                 `koanf:"driver" yaml:"driver" validate:"oneof=memory postgres"`
	Postgres storage.PostgresConfig `koanf:"postgres" yaml:"postgres"`
}

// CoachingConfig controls the AI coaching providers and the middleware
// wrapped around every provider client.
type CoachingConfig struct {
	DefaultProvider string        `koanf:"default_provider" yaml:"default_provider" validate:"required"`
	MaxTokens       int           `koanf:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	Timeout         time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`

	// DocumentChars caps how much of each attachment's text goes into the
	// coaching context.
	DocumentChars int `koanf:"document_chars" yaml:"document_chars" validate:"gt=0"`

	MaxRetries     int           `koanf:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" yaml:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay" yaml:"retry_max_delay" validate:"gte=0"`

	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `koanf:"burst" yaml:"burst" validate:"gt=0"`

	BreakerFailures int           `koanf:"breaker_failures" yaml:"breaker_failures" validate:"gt=0"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" yaml:"breaker_cooldown" validate:"gt=0"`

	// Budget limits are shared by every provider. Zero is unlimited.
	TokenBudget  int64         `koanf:"token_budget" yaml:"token_budget" validate:"gte=0"`
	CallBudget   int64         `koanf:"call_budget" yaml:"call_budget" validate:"gte=0"`
	BudgetWindow time.Duration `koanf:"budget_window" yaml:"budget_window" validate:"gte=0"`
}

// AttachmentsConfig controls attachment validation and text extraction.
type AttachmentsConfig struct {
	// ObjectDir is the directory uploaded objects are read from.
	ObjectDir string `koanf:"object_dir" yaml:"object_dir" validate:"required"`

	MaxSize           int64    `koanf:"max_size" yaml:"max_size" validate:"gt=0"`
	MaxExtractedChars int      `koanf:"max_extracted_chars" yaml:"max_extracted_chars" validate:"gt=0"`
	AllowedTypes      []string `koanf:"allowed_types" yaml:"allowed_types" validate:"min=1,dive,required"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path" validate:"required,startswith=/"`
}

// DefaultConfig returns a configuration that runs locally with the
// in-memory store.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			BodyLimit:       "2M",
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
			Postgres: storage.PostgresConfig{
				MaxConns:        10,
				MaxConnLifetime: time.Hour,
				Migrate:         true,
			},
		},
		Noise: domain.DefaultNoiseConfig(),
		Coaching: CoachingConfig{
			DefaultProvider:   "openai",
			MaxTokens:         8192,
			Timeout:           90 * time.Second,
			DocumentChars:     3000,
			MaxRetries:        2,
			RetryBaseDelay:    500 * time.Millisecond,
			RetryMaxDelay:     10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
			BreakerFailures:   5,
			BreakerCooldown:   30 * time.Second,
			BudgetWindow:      24 * time.Hour,
		},
		Attachments: AttachmentsConfig{
			ObjectDir:         "./data/objects",
			MaxSize:           domain.MaxAttachmentSize,
			MaxExtractedChars: 50000,
			AllowedTypes:      append([]string(nil), domain.AllowedAttachmentTypes...),
		},
		Logging:   logging.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// WorstCase is the longest a coaching request can run: every attempt hits
// Timeout and every backoff takes its upper jitter bound.
func (c CoachingConfig) WorstCase() time.Duration {
	total := c.Timeout * time.Duration(c.MaxRetries+1)
	for attempt := range c.MaxRetries {
		d := c.RetryBaseDelay * time.Duration(1<<min(attempt, 30))
		d += d / 4
		if c.RetryMaxDelay > 0 && d > c.RetryMaxDelay {
			d = c.RetryMaxDelay
		}
		total += d
	}
	return total
}

var configValidator = validator.New()

// Validate checks struct tags and the rules that span fields. Every failure
// wraps domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if err := configValidator.Struct(c); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.Postgres.DSN == "" {
		errs = append(errs, errors.New("storage.postgres.dsn is required for the postgres driver"))
	}
	if c.Coaching.RetryMaxDelay > 0 && c.Coaching.RetryMaxDelay < c.Coaching.RetryBaseDelay {
		errs = append(errs, errors.New("coaching.retry_max_delay must not be below retry_base_delay"))
	}
	if worst := c.Coaching.WorstCase(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < worst {
		errs = append(errs, fmt.Errorf("server.write_timeout %s is below the coaching worst case %s", c.Server.WriteTimeout, worst))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, errors.Join(errs...))
}
