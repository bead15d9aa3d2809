package bot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/gateprep/coursebot/core/config"
	coredatabase "github.com/gateprep/coursebot/core/database"
)

// Storage backend identifiers.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string `yaml:"backend" envconfig:"STORE_BACKEND"`
	CatalogFile string `yaml:"catalog_file" envconfig:"STORE_CATALOG_FILE"`
	UsersFile   string `yaml:"users_file" envconfig:"STORE_USERS_FILE"`
	// SeedFile is loaded into an empty catalog at startup, regardless of
	// backend. Empty disables seeding.
	SeedFile string `yaml:"seed_file" envconfig:"STORE_SEED_FILE"`
	RedisURL string `yaml:"redis_url" envconfig:"REDIS_URL"`
}

// PaymentConfig holds the static payment link rendered in the purchase flow.
type PaymentConfig struct {
	Link string `yaml:"link" envconfig:"PAYMENT_LINK"`
}

// HealthConfig configures the liveness probe listener.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config aggregates the reusable core configuration with bot-specific
// settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Store    StoreConfig         `yaml:"store"`
	Payment  PaymentConfig       `yaml:"payment"`
	Health   HealthConfig        `yaml:"health"`
}

// CoreConfig exposes the embedded core configuration for the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the aggregate configuration from a YAML file with environment
// overrides applied on top.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = BackendFile
	}
	switch backend {
	case BackendFile:
		if strings.TrimSpace(cfg.Store.CatalogFile) == "" {
			cfg.Store.CatalogFile = "courses.json"
		}
		if strings.TrimSpace(cfg.Store.UsersFile) == "" {
			cfg.Store.UsersFile = "users.json"
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" {
			return fmt.Errorf("database.host is required when store.backend is 'postgres'")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Store.RedisURL) == "" {
			return fmt.Errorf("store.redis_url is required when store.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: file, postgres, redis", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	if strings.TrimSpace(cfg.Health.Listen) == "" {
		cfg.Health.Listen = ":8080"
	}
	return nil
}
