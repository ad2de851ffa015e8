package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/leveler/internal/ledger"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Redis    RedisConfig       `yaml:"redis"`
	Auth     AuthConfig        `yaml:"auth"`
	Leveling LevelingConfig    `yaml:"leveling"`
	Ping     PingConfig        `yaml:"ping"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Leveling.Validate(); err != nil {
		return fmt.Errorf("leveling: %w", err)
	}
	if err := c.Ping.Validate(); err != nil {
		return fmt.Errorf("ping: %w", err)
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

// StoreConfig selects the ledger backend.
//
// Driver "sqlite3" uses Path; driver "pgx" uses DSN.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = ledger.DriverSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(ledger.DriverSQLite, ledger.DriverPostgres)),
		validation.Field(&c.Path, validation.When(c.Driver == ledger.DriverSQLite, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Driver == ledger.DriverPostgres, validation.Required)),
	)
}

// Source returns the driver-specific data source.
func (c *StoreConfig) Source() string {
	if c.Driver == ledger.DriverPostgres {
		return c.DSN
	}
	return c.Path
}

// RedisConfig holds the optional leaderboard cache configuration.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.When(c.Enabled, validation.Required)),
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

// LevelingConfig tunes XP awards and leaderboard size.
type LevelingConfig struct {
	XPPerMessage     int64 `yaml:"xp_per_message"`
	LeaderboardLimit int   `yaml:"leaderboard_limit"`
}

// Validate validates the leveling configuration.
func (c *LevelingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.XPPerMessage, validation.Required, validation.Min(int64(1)), validation.Max(int64(10_000))),
		validation.Field(&c.LeaderboardLimit, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// PingConfig holds the ping demo timings.
type PingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`
}

// Validate validates the ping configuration.
func (c *PingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Window, validation.Required, validation.Min(time.Second)),
	)
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
		Store: StoreConfig{
			Driver: ledger.DriverSQLite,
			Path:   "./leveler.db",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Leveling: LevelingConfig{
			XPPerMessage:     10,
			LeaderboardLimit: 10,
		},
		Ping: PingConfig{
			Interval: time.Minute,
			Window:   time.Minute,
		},
	}
}
