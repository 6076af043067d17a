// Package config loads server settings from defaults, an optional YAML file,
// a .env file and OTPGUARD_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OTPGUARD_JWT_KEY.
const EnvPrefix = "OTPGUARD"

// Config is the server configuration.
type Config struct {
	Addr      string        `mapstructure:"addr"`
	DSN       string        `mapstructure:"dsn"`
	JWTKey    string        `mapstructure:"jwt_key"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
	Env       string        `mapstructure:"env"`

	StorageBackend string `mapstructure:"storage_backend"`
	StorageRoot    string `mapstructure:"storage_root"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Region       string `mapstructure:"s3_region"`
	S3Endpoint     string `mapstructure:"s3_endpoint"`
	S3AccessKey    string `mapstructure:"s3_access_key"`
	S3SecretKey    string `mapstructure:"s3_secret_key"`

	CleanupDelay   time.Duration `mapstructure:"cleanup_delay"`
	StrictTemplate bool          `mapstructure:"strict_template"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`

	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`

	LoginMaxFails int           `mapstructure:"login_max_fails"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	LoginBlockFor time.Duration `mapstructure:"login_block_for"`
	IPRatePerMin  int           `mapstructure:"ip_rate_per_min"`

	// TrustProxy takes the client IP from X-Forwarded-For. Leave off unless a proxy always sets it.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

var defaults = map[string]any{
	"addr":             ":3001",
	"dsn":              "",
	"jwt_key":          "",
	"access_ttl":       "24h",
	"env":              "production",
	"storage_backend":  "local",
	"storage_root":     "uploads",
	"s3_bucket":        "",
	"s3_region":        "us-east-1",
	"s3_endpoint":      "",
	"s3_access_key":    "",
	"s3_secret_key":    "",
	"cleanup_delay":    "60s",
	"strict_template":  false,
	"max_upload_bytes": 10 << 20,
	"admin_email":      "",
	"admin_password":   "",
	"login_max_fails":  5,
	"login_window":     "15m",
	"login_block_for":  "15m",
	"ip_rate_per_min":  120,
	"trust_proxy":      false,
}

// Load reads configuration. configFile may be empty; then ./config.yaml is used if present.
// envFile is loaded into the process environment first and may be missing.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.JWTKey == "":
		return errors.New("jwt_key is required")
	case c.DSN == "":
		return errors.New("dsn is required")
	case c.AccessTTL <= 0:
		return errors.New("access_ttl must be positive")
	case c.CleanupDelay <= 0:
		return errors.New("cleanup_delay must be positive")
	case (c.AdminEmail == "") != (c.AdminPassword == ""):
		return errors.New("admin_email and admin_password must be set together")
	}
	switch c.StorageBackend {
	case "local":
		if c.StorageRoot == "" {
			return errors.New("storage_root is required for local storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage_backend %q", c.StorageBackend)
	}
	return nil
}

// Development reports whether human-readable logs are wanted.
func (c *Config) Development() bool { return c.Env == "development" }
