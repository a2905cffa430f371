package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Pocket Money"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	Store struct {
		Driver string `envconfig:"STORE_DRIVER" default:"memory"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"pocketmoney"`
		MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
	}

	Ledger struct {
		LogDir            string        `envconfig:"LEDGER_LOG_DIR" default:"data"`
		LogTimeout        time.Duration `envconfig:"LEDGER_LOG_TIMEOUT" default:"5s"`
		CommitTimeout     time.Duration `envconfig:"LEDGER_COMMIT_TIMEOUT" default:"5s"`
		PersistencePolicy string        `envconfig:"LEDGER_PERSISTENCE_POLICY" default:"report"`
		Timezone          string        `envconfig:"LEDGER_TIMEZONE" default:"UTC"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		RateLimit   string        `envconfig:"RATE_LIMIT" default:"60-M"`
		CORSOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Kafka struct {
		Brokers []string `envconfig:"KAFKA_BROKERS"`
		Topic   string   `envconfig:"KAFKA_TOPIC" default:"pocket_money_updates"`
	}

	Client struct {
		BaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8080/api/v1"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func (c *Config) Policy() ledger.Policy {
	p, _ := ledger.ParsePolicy(c.Ledger.PersistencePolicy)
	return p
}

// Location is the timezone applied to transaction timestamps without an offset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if _, err := ledger.ParsePolicy(c.Ledger.PersistencePolicy); err != nil {
		errs = append(errs, err)
	}

	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid LEDGER_TIMEZONE: %w", err))
	}

	if c.Ledger.LogTimeout < 0 {
		errs = append(errs, errors.New("LEDGER_LOG_TIMEOUT must not be negative"))
	}

	if c.Ledger.CommitTimeout < 0 {
		errs = append(errs, errors.New("LEDGER_COMMIT_TIMEOUT must not be negative"))
	}

	return errors.Join(errs...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
