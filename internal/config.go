package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fsgate/internal/gateway"
	"github.com/starford/fsgate/internal/tracing"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Gateway   GatewayConfig     `yaml:"gateway"`
	Sandbox   SandboxConfig     `yaml:"sandbox"`
	Dispatch  DispatchConfig    `yaml:"dispatch"`
	Audit     AuditConfig       `yaml:"audit"`
	Auth      AuthConfig        `yaml:"auth"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Tracing   TracingConfig     `yaml:"tracing"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Gateway, &c.Dispatch, &c.Audit, &c.Auth, &c.RateLimit, &c.Tracing,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GatewayConfig controls text encoding and the size limit.
type GatewayConfig struct {
	Encoding     string `yaml:"encoding"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
}

// Validate validates the gateway configuration.
func (c *GatewayConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Encoding, validation.By(func(any) error {
			_, err := gateway.LookupEncoding(c.Encoding)
			return err
		})),
		validation.Field(&c.MaxFileBytes, validation.Min(int64(0))),
	)
}

// SandboxConfig confines reachable paths. An empty Root leaves the
// gateway unrestricted.
type SandboxConfig struct {
	Root       string `yaml:"root"`
	CreateRoot bool   `yaml:"create_root"`
}

// DispatchConfig sizes the worker pool.
type DispatchConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the dispatch configuration.
func (c *DispatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// AuditConfig holds the SQLite audit log settings. Retention of zero keeps
// entries forever.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// Validate validates the audit configuration.
func (c *AuditConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Retention, validation.Min(time.Duration(0))),
		validation.Field(&c.PruneInterval, validation.When(c.Retention > 0, validation.Required, validation.Min(time.Second))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// RateLimitConfig bounds HTTP requests per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	Burst          int `yaml:"burst"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RequestsPerMin, validation.Min(0)),
		validation.Field(&c.Burst, validation.When(c.RequestsPerMin > 0, validation.Required, validation.Min(1))),
	)
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Validate validates the tracing configuration.
func (c *TracingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Exporter, validation.In(tracing.ExporterNoop, tracing.ExporterStdout)),
	)
}

// WatchConfig toggles the sandbox root watcher. It has no effect without
// a sandbox root.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Gateway: GatewayConfig{
			Encoding:     gateway.DefaultEncoding,
			MaxFileBytes: gateway.DefaultMaxFileBytes,
		},
		Sandbox: SandboxConfig{
			Root:       "./data",
			CreateRoot: true,
		},
		Dispatch: DispatchConfig{
			Workers: 8,
		},
		Audit: AuditConfig{
			Enabled:       true,
			Path:          "./fsgate.db",
			Retention:     30 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: 600,
			Burst:          50,
		},
		Tracing: TracingConfig{
			Exporter: tracing.ExporterNoop,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
