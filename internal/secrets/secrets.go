// Package secrets resolves credentials given in the configuration as
// ${VAR} references or file:/path references to mounted secret files.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	// FilePrefix marks a value read from a file, e.g. file:/run/secrets/solaredge
	FilePrefix = "file:"

	// secrets are tokens and passwords, not documents
	maxSecretFileSize = 64 * 1024
)

// GetLogger returns the secrets module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("secrets")
}

// ExpandString expands ${VAR} and ${VAR:-default} references. A referenced
// variable that is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

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
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file. Trailing newlines are trimmed; files readable
// by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fileError(clean, err)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(clean, errors.NewStd("not a regular file"))
	}
	if info.Size() > maxSecretFileSize {
		return "", fileError(clean, errors.NewStd("secret file too large"))
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		GetLogger().Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(clean, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(clean, errors.NewStd("secret file is empty"))
	}
	return secret, nil
}

func fileError(path string, err error) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}

// Resolve returns the secret a configuration value refers to. Values with
// FilePrefix are read from the file, everything else is expanded.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(path)
	}
	return ExpandString(value)
}
