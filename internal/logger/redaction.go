package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor scrubs credentials out of log lines
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with the default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Authorization headers
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// Bare JWTs (header.payload.signature, base64url)
			regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`),

			// bcrypt hashes
			regexp.MustCompile(`\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}`),

			// Passwords and passphrases in key/value or JSON form
			regexp.MustCompile(`(?i)"?(password|passphrase|pwd)"?\s*[:=]\s*"?[^\s",}]+"?`),

			// Token fields
			regexp.MustCompile(`(?i)"?token"?\s*[:=]\s*"?[a-zA-Z0-9._-]{20,}"?`),

			// Secrets such as jwt_secret
			regexp.MustCompile(`(?i)"?[a-z_]*secret"?\s*[:=]\s*"?[^\s",}]+"?`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every match of every pattern
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}

// Wrap wraps an io.Writer so everything written through it is redacted
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success since callers account for their own bytes,
// not the redacted ones.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
