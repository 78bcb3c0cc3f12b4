// Package secrets resolves credentials in configuration values from
// environment variables or mounted secret files.
//
// A value is taken literally unless it references ${VAR}, ${VAR:-default}
// or starts with "file:", e.g. "file:/run/secrets/mapbox_token".
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

const (
	filePrefix = "file:"

	// tokens and passwords, not documents
	maxSecretFileSize = 64 * 1024
)

var (
	// ErrMissingVariable is returned when a referenced variable is unset and has no default.
	ErrMissingVariable = errors.NewStd("missing environment variable")
	// ErrSecretFile is returned when a secret file cannot be used.
	ErrSecretFile = errors.NewStd("unusable secret file")
)

// Resolve returns the secret a configuration value refers to.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, filePrefix); ok {
		return ReadFile(path)
	}
	if !strings.Contains(value, "${") {
		return value, nil
	}
	return ExpandString(value)
}

// ExpandString replaces ${VAR} and ${VAR:-default} references. An unset
// variable without a default is an error; an empty default is allowed.
func ExpandString(s string) (string, error) {
	var missing []string

	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.New(fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file such as a Docker or Kubernetes mounted secret.
// Trailing newlines are trimmed; files readable by group or others are used
// but logged.
func ReadFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", secretFileError(path, fmt.Errorf("empty path"))
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", secretFileError(cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", secretFileError(cleanPath, fmt.Errorf("not a regular file"))
	}
	if info.Size() > maxSecretFileSize {
		return "", secretFileError(cleanPath, fmt.Errorf("larger than %d bytes", maxSecretFileSize))
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by other users",
			logger.String("path", cleanPath),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", secretFileError(cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", secretFileError(cleanPath, fmt.Errorf("file is empty"))
	}
	return secret, nil
}

func secretFileError(path string, err error) error {
	return errors.New(fmt.Errorf("%w %s: %w", ErrSecretFile, path, err)).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Build()
}
