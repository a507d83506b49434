package config

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard on stdin and stdout
func NewWizard() *Wizard {
	return NewWizardIO(os.Stdin, os.Stdout)
}

// NewWizardIO creates a wizard on the given streams
func NewWizardIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// GenerateSecret returns n random bytes, hex encoded
func GenerateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Run asks for the listener and storage settings and generates fresh secrets
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== Beacon Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	// Listener
	for {
		fmt.Fprintf(w.out, "HTTP port [%d]: ", cfg.HTTP.Port)
		answer, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if answer == "" {
			break
		}

		port, err := strconv.Atoi(answer)
		if err == nil {
			err = validator.ValidatePort(port)
		}
		if err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.HTTP.Port = port
		break
	}

	// Storage
	fmt.Fprint(w.out, "Data directory [~/.beacon]: ")
	dir, err := w.readLine()
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir

	// Read policy
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Read policy options:")
	fmt.Fprintln(w.out, "  strict - reads before /initialize return 404 (default)")
	fmt.Fprintln(w.out, "  lazy   - reads before /initialize create a record")
	fmt.Fprint(w.out, "Read policy [strict]: ")
	policy, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if policy != "" {
		if err := validator.ValidateReadPolicy(policy); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (strict)\n", err)
		} else {
			cfg.Location.ReadPolicy = policy
		}
	}

	// Log level
	fmt.Fprintln(w.out)
	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	// Secrets
	if cfg.Auth.JWTSecret, err = GenerateSecret(32); err != nil {
		return nil, err
	}
	if cfg.Snapshot.Passphrase, err = GenerateSecret(24); err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Generated a new JWT secret and snapshot passphrase.")
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// readLine treats end of input as an empty answer
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
