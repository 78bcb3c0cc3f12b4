// Package api serves the recording session and local history over HTTP for
// "phibia serve".
package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute // ?wait=true holds the response for a whole prediction
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultUploadLimitMB   = 25
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	AllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// UploadLimitMB bounds a single audio upload
	UploadLimitMB int

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8080,
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		UploadLimitMB:   DefaultUploadLimitMB,
	}
}

// ConfigFromSettings creates a Config from application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	config := DefaultConfig()
	config.Host = settings.WebServer.Listen
	if settings.WebServer.Port != 0 {
		config.Port = settings.WebServer.Port
	}
	if settings.Audio.MaxUploadSizeMB > 0 {
		config.UploadLimitMB = settings.Audio.MaxUploadSizeMB
	}
	config.Debug = settings.Debug
	return config
}

// Address returns host:port.
func (c *Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// BodyLimit returns the echo body limit, with headroom for multipart framing.
func (c *Config) BodyLimit() string {
	return strconv.Itoa(c.UploadLimitMB+1) + "M"
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.UploadLimitMB <= 0 {
		return fmt.Errorf("upload limit must be positive, got %d MB", c.UploadLimitMB)
	}
	return nil
}
