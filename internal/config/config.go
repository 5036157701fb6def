// Package config assembles the gatebot configuration: the reusable bot core
// plus storage, database and admission policy settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
	"github.com/m3rciful/gatebot/internal/records/redisstore"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

const (
	defaultDataFile      = "data.json"
	defaultBadgerDir     = "data/badger"
	defaultMigrationsDir = "migrations"
	defaultCooldownHours = 24
	defaultInviteTTL     = 24
)

// StorageConfig selects where the records document lives.
type StorageConfig struct {
	Backend   string            `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	DataFile  string            `yaml:"data_file" envconfig:"DATA_FILE"`
	BadgerDir string            `yaml:"badger_dir" envconfig:"BADGER_DIR"`
	Redis     redisstore.Config `yaml:"redis"`
}

// PolicyConfig holds admission timings.
type PolicyConfig struct {
	CooldownHours  int `yaml:"cooldown_hours" envconfig:"COOLDOWN_HOURS"`
	InviteTTLHours int `yaml:"invite_ttl_hours" envconfig:"INVITE_TTL_HOURS"`
}

// Cooldown is the wait imposed after a rejection.
func (p PolicyConfig) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

// InviteTTL is the lifetime of a generated invite link.
func (p PolicyConfig) InviteTTL() time.Duration {
	return time.Duration(p.InviteTTLHours) * time.Hour
}

// Config is the complete application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Policy   PolicyConfig        `yaml:"policy"`
}

// CoreConfig exposes the embedded bot core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// PostgresConfig returns the database settings when the postgres backend is
// selected and nil otherwise.
func (c *Config) PostgresConfig() *coredatabase.Config {
	if c == nil || c.Storage.Backend != BackendPostgres {
		return nil
	}
	return &c.Database
}

// Load reads the optional YAML file at path, overlays the environment and
// fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.LoadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates the storage selection.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	st := &cfg.Storage
	st.Backend = strings.ToLower(strings.TrimSpace(st.Backend))
	switch st.Backend {
	case "":
		st.Backend = BackendFile
	case BackendFile, BackendPostgres, BackendRedis, BackendBadger:
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: file, postgres, redis, badger", st.Backend)
	}
	if st.DataFile == "" {
		st.DataFile = defaultDataFile
	}
	if st.BadgerDir == "" {
		st.BadgerDir = defaultBadgerDir
	}
	if st.Redis.Key == "" {
		st.Redis.Key = redisstore.DefaultKey
	}
	if st.Backend == BackendRedis && st.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required when storage.backend is 'redis'")
	}
	if st.Backend == BackendPostgres && (cfg.Database.Host == "" || cfg.Database.Name == "") {
		return fmt.Errorf("database.host and database.name are required when storage.backend is 'postgres'")
	}

	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = defaultMigrationsDir
	}

	if cfg.Policy.CooldownHours <= 0 {
		cfg.Policy.CooldownHours = defaultCooldownHours
	}
	if cfg.Policy.InviteTTLHours <= 0 {
		cfg.Policy.InviteTTLHours = defaultInviteTTL
	}
	return nil
}
