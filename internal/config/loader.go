package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BEACON_HTTP_PORT
const EnvPrefix = "BEACON"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// defaultHome is $HOME/.beacon
func defaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".beacon"), nil
}

// newViper registers every default so environment variables override keys
// that the config file does not mention.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("gateway.auth_timeout", d.Gateway.AuthTimeout)
	v.SetDefault("gateway.queue_size", d.Gateway.QueueSize)
	v.SetDefault("gateway.rate_limit", d.Gateway.RateLimit)
	v.SetDefault("snapshot.file", d.Snapshot.File)
	v.SetDefault("snapshot.schedule", d.Snapshot.Schedule)
	v.SetDefault("snapshot.passphrase", d.Snapshot.Passphrase)
	v.SetDefault("location.read_policy", d.Location.ReadPolicy)
	v.SetDefault("location.radius_km", d.Location.RadiusKm)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("users_file", d.UsersFile)

	return v
}

// Load reads the config file if it exists, applies environment overrides
// and fills path defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := defaultHome()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = home
	}
	cfg.ApplyPathDefaults()

	return cfg, nil
}

// Save writes cfg as JSON to the config path
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("http", cfg.HTTP)
	v.Set("auth", map[string]any{
		"jwt_secret":  cfg.Auth.JWTSecret,
		"token_ttl":   cfg.Auth.TokenTTL.String(),
		"bcrypt_cost": cfg.Auth.BcryptCost,
	})
	v.Set("gateway", map[string]any{
		"auth_timeout": cfg.Gateway.AuthTimeout.String(),
		"queue_size":   cfg.Gateway.QueueSize,
		"rate_limit":   cfg.Gateway.RateLimit,
	})
	v.Set("snapshot", cfg.Snapshot)
	v.Set("location", cfg.Location)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)
	v.Set("users_file", cfg.UsersFile)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(configPath, 0o600)
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := defaultHome()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "beacon.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
