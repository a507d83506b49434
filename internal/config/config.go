package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// Config represents the beacon configuration
type Config struct {
	// HTTP listener shared by the API and the push channel
	HTTP HTTPConfig `json:"http" mapstructure:"http"`

	// Credentials
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Push channel
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Encrypted location snapshot
	Snapshot SnapshotConfig `json:"snapshot" mapstructure:"snapshot"`

	// Location state
	Location LocationConfig `json:"location" mapstructure:"location"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Registered users file
	UsersFile string `json:"users_file" mapstructure:"users_file"`
}

// HTTPConfig holds listener configuration
type HTTPConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// AuthConfig holds credential settings
type AuthConfig struct {
	JWTSecret  string        `json:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `json:"token_ttl" mapstructure:"token_ttl"`
	BcryptCost int           `json:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// GatewayConfig holds push channel settings
type GatewayConfig struct {
	AuthTimeout time.Duration `json:"auth_timeout" mapstructure:"auth_timeout"`
	QueueSize   int           `json:"queue_size" mapstructure:"queue_size"`
	RateLimit   int           `json:"rate_limit" mapstructure:"rate_limit"` // update_location per minute
}

// SnapshotConfig holds persistence settings
type SnapshotConfig struct {
	File       string `json:"file" mapstructure:"file"`
	Schedule   string `json:"schedule" mapstructure:"schedule"`
	Passphrase string `json:"passphrase" mapstructure:"passphrase"`
}

// LocationConfig holds location state settings
type LocationConfig struct {
	ReadPolicy string  `json:"read_policy" mapstructure:"read_policy"` // strict, lazy
	RadiusKm   float64 `json:"radius_km" mapstructure:"radius_km"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			BcryptCost: 10,
		},
		Gateway: GatewayConfig{
			AuthTimeout: 10 * time.Second,
			QueueSize:   64,
			RateLimit:   60,
		},
		Snapshot: SnapshotConfig{
			Schedule: "@every 30s",
		},
		Location: LocationConfig{
			ReadPolicy: "strict",
			RadiusKm:   10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Auth.JWTSecret != "" {
		masked.Auth.JWTSecret = "***"
	}
	if masked.Snapshot.Passphrase != "" {
		masked.Snapshot.Passphrase = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// ApplyPathDefaults fills empty file paths under DataDir
func (c *Config) ApplyPathDefaults() {
	if c.DataDir == "" {
		return
	}
	if c.UsersFile == "" {
		c.UsersFile = filepath.Join(c.DataDir, "users.json")
	}
	if c.Snapshot.File == "" {
		c.Snapshot.File = filepath.Join(c.DataDir, "locations.json")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "beacon.log")
	}
}

// PIDFile is where a running server records its process id
func (c *Config) PIDFile() string {
	return filepath.Join(c.DataDir, "beacon.pid")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set it in the config file or BEACON_AUTH_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}

	v := NewValidator()
	if errs := v.ValidateConfig(c); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
