package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/cardboard/internal/board"
	"github.com/starford/cardboard/internal/mockapi"
	"github.com/starford/cardboard/internal/session"
	"github.com/starford/cardboard/internal/toast"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Mock store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreS3     = "s3"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Remote RemoteConfig      `yaml:"remote"`
	Board  BoardConfig       `yaml:"board"`
	Auth   AuthConfig        `yaml:"auth"`
	Mock   MockConfig        `yaml:"mock"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Board.Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if err := c.Mock.Validate(); err != nil {
		return fmt.Errorf("mock: %w", err)
	}
	return c.Auth.Validate()
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

// RemoteConfig points the board at the card collection service.
type RemoteConfig struct {
	// BaseURL is the API root; the collection lives at {BaseURL}/cards.
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Token     string        `yaml:"token"`
	UserAgent string        `yaml:"user_agent"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// BoardConfig holds the per-session board tunables. ToastDuration and
// Transition are reloaded live.
type BoardConfig struct {
	ToastDuration  time.Duration `yaml:"toast_duration"`
	Transition     time.Duration `yaml:"transition"`
	RenderThrottle time.Duration `yaml:"render_throttle"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// Validate validates the board configuration.
func (c *BoardConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ToastDuration, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Transition, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RenderThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
	)
}

// SessionSettings converts the board section plus the remote timeout into
// settings for new sessions.
func (c *Config) SessionSettings() session.Settings {
	return session.Settings{
		ToastDuration:  c.Board.ToastDuration,
		Transition:     c.Board.Transition,
		RenderThrottle: c.Board.RenderThrottle,
		RequestTimeout: c.Remote.Timeout,
		TTL:            c.Board.SessionTTL,
	}
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

// MockConfig configures the bundled mock collection service.
type MockConfig struct {
	Port    int              `yaml:"port"`
	Prefix  string           `yaml:"prefix"`
	Store   string           `yaml:"store"`
	Latency time.Duration    `yaml:"latency"`
	SQLite  SQLiteConfig     `yaml:"sqlite"`
	S3      mockapi.S3Config `yaml:"s3"`
	// Seed cards are inserted into an empty memory store at startup.
	Seed []SeedCard `yaml:"seed"`
}

// SeedCard is a card created at mock startup.
type SeedCard struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Address returns the mock server address.
func (c *MockConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the mock configuration.
func (c *MockConfig) Validate() error {
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Store, validation.In(StoreMemory, StoreSQLite, StoreS3)),
		validation.Field(&c.Latency, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	switch c.Store {
	case StoreSQLite:
		return c.SQLite.Validate()
	case StoreS3:
		return validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Bucket, validation.Required),
			validation.Field(&c.S3.Region, validation.Required),
		)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8081/api",
			Timeout: 10 * time.Second,
		},
		Board: BoardConfig{
			ToastDuration:  toast.DefaultDuration,
			Transition:     board.DefaultTransition,
			RenderThrottle: 50 * time.Millisecond,
			SessionTTL:     30 * time.Minute,
			SweepInterval:  time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Mock: MockConfig{
			Port:   8081,
			Prefix: "/api",
			Store:  StoreMemory,
			SQLite: SQLiteConfig{
				Path: "./cards.db",
			},
		},
	}
}
