// Package config loads server settings from environment variables.
//
// Every setting has a default except JWT_SECRET. Nested structs group
// related variables under a shared prefix (DB_, JWT_, PASSWORD_, ...).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Database Database `envPrefix:"DB_"`
	JWT      JWT      `envPrefix:"JWT_"`
	Password Password `envPrefix:"PASSWORD_"`
	GitHub   GitHub   `envPrefix:"GITHUB_"`
	AMQP     AMQP     `envPrefix:"AMQP_"`
}

// Database selects and locates the task store.
type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	Path   string `env:"PATH" envDefault:"data/tasklist.db"`
	DSN    string `env:"DSN"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret   string `env:"SECRET,required"`
	Issuer   string `env:"ISSUER" envDefault:"tasklist"`
	Audience string `env:"AUDIENCE" envDefault:"tasklist-clients"`
}

// Password selects the hashing scheme for new and stored passwords.
type Password struct {
	Scheme     string `env:"SCHEME" envDefault:"bcrypt"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"12"`
}

// GitHub enables the OAuth login routes when ClientID is set.
type GitHub struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether GitHub login is configured.
func (g GitHub) Enabled() bool { return g.ClientID != "" }

// AMQP enables task event publishing when URL is set.
type AMQP struct {
	URL   string `env:"URL"`
	Queue string `env:"QUEUE" envDefault:"task_events"`
}

// Enabled reports whether events go to a broker.
func (a AMQP) Enabled() bool { return a.URL != "" }

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	if cfg.GitHub.Enabled() && cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations env tags cannot express.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}
	switch c.Password.Scheme {
	case "bcrypt", "sha256":
	default:
		errs = append(errs, fmt.Errorf("unknown PASSWORD_SCHEME %q", c.Password.Scheme))
	}
	if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.GitHub.Enabled() && c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_SECRET is required when GITHUB_CLIENT_ID is set"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
