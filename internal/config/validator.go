package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/harun/beacon/pkg/snapshot"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port. Zero asks the OS for a free port.
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateReadPolicy validates the location read policy
func (v *Validator) ValidateReadPolicy(policy string) error {
	if policy == "" {
		return nil // Use default
	}

	validPolicies := []string{"strict", "lazy"}
	for _, valid := range validPolicies {
		if policy == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid read policy: %s (must be one of: %s)", policy, strings.Join(validPolicies, ", "))
}

// ValidateSchedule validates a cron spec such as "@every 30s"
func (v *Validator) ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("snapshot schedule cannot be empty")
	}
	_, err := snapshot.ParseSchedule(spec)
	return err
}

// ValidateBcryptCost validates a bcrypt work factor
func (v *Validator) ValidateBcryptCost(cost int) error {
	if cost == 0 {
		return nil // Use default
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return nil
}

// ValidateDuration checks that d is positive
func (v *Validator) ValidateDuration(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.HTTP.Port); err != nil {
		errors = append(errors, fmt.Errorf("http: %w", err))
	}

	if err := v.ValidateDuration("auth.token_ttl", cfg.Auth.TokenTTL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateBcryptCost(cfg.Auth.BcryptCost); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateDuration("gateway.auth_timeout", cfg.Gateway.AuthTimeout); err != nil {
		errors = append(errors, err)
	}
	if cfg.Gateway.QueueSize < 0 {
		errors = append(errors, fmt.Errorf("gateway.queue_size must be >= 0"))
	}
	if cfg.Gateway.RateLimit < 0 {
		errors = append(errors, fmt.Errorf("gateway.rate_limit must be >= 0"))
	}

	if err := v.ValidateSchedule(cfg.Snapshot.Schedule); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateReadPolicy(cfg.Location.ReadPolicy); err != nil {
		errors = append(errors, err)
	}
	if cfg.Location.RadiusKm < 0 {
		errors = append(errors, fmt.Errorf("location.radius_km must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
