package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the configuration file omits values.
const (
	// DefaultListenAddr is the fallback HTTP listen address.
	DefaultListenAddr = ":8317"
	// DefaultJWTExpiry is the fallback operator token lifetime.
	DefaultJWTExpiry = 12 * time.Hour
	// DefaultLookupTTL is the fallback lookup cache time-to-live.
	DefaultLookupTTL = 20 * time.Minute
	// DefaultLookupCacheSize bounds the in-memory lookup cache.
	DefaultLookupCacheSize = 1024
	// DefaultAuditSweepInterval is the fallback audit retention sweep cadence.
	DefaultAuditSweepInterval = 6 * time.Hour
)

// Duration wraps time.Duration so YAML values like "20m" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode != nil {
		return errDecode
	}
	parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
	if errParse != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen-addr"` // Address the API listens on.
}

// DatabaseConfig holds the metadata database settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Metadata database DSN; required.
}

// JWTConfig holds operator token settings.
type JWTConfig struct {
	Secret string   `yaml:"secret"` // HMAC signing secret; required.
	Expiry Duration `yaml:"expiry"` // Token lifetime.
}

// LookupConfig holds lookup cache settings.
type LookupConfig struct {
	Backend   string   `yaml:"backend"`    // "memory" (default) or "redis".
	TTL       Duration `yaml:"ttl"`        // Cache entry time-to-live.
	CacheSize int      `yaml:"cache-size"` // Max entries for the memory backend.
	RedisAddr string   `yaml:"redis-addr"` // Redis address for the redis backend.
	RedisDB   int      `yaml:"redis-db"`   // Redis database number.
}

// AuditConfig holds audit trail retention settings.
type AuditConfig struct {
	RetentionDays int      `yaml:"retention-days"` // Entries older than this are deleted; 0 keeps everything.
	SweepInterval Duration `yaml:"sweep-interval"` // How often the retention sweep runs.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name.
	File       string `yaml:"file"`        // Optional rotating log file path.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotation size threshold.
	MaxBackups int    `yaml:"max-backups"` // Rotated files kept.
}

// SeedConfig holds the bootstrap operator credentials used by migrate.
type SeedConfig struct {
	AdminUsername string `yaml:"admin-username"` // Seed operator login.
	AdminPassword string `yaml:"admin-password"` // Seed operator password.
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Lookup   LookupConfig   `yaml:"lookup"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
	Seed     SeedConfig     `yaml:"seed"`
}

// ResolveConfigPath returns the effective config path, honoring the
// CMSTOOLS_CONFIG environment variable when no explicit path is given.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("CMSTOOLS_CONFIG")); env != "" {
		return env
	}
	return "config.yaml"
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with default values.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = Duration(DefaultJWTExpiry)
	}
	if strings.TrimSpace(c.Lookup.Backend) == "" {
		c.Lookup.Backend = "memory"
	}
	if c.Lookup.TTL <= 0 {
		c.Lookup.TTL = Duration(DefaultLookupTTL)
	}
	if c.Lookup.CacheSize <= 0 {
		c.Lookup.CacheSize = DefaultLookupCacheSize
	}
	if c.Audit.SweepInterval <= 0 {
		c.Audit.SweepInterval = Duration(DefaultAuditSweepInterval)
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
}

// validate rejects configurations that cannot boot.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	switch c.Lookup.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Lookup.RedisAddr) == "" {
			return fmt.Errorf("config: lookup.redis-addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unsupported lookup backend: %s", c.Lookup.Backend)
	}
	return nil
}
