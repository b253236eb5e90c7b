// Package config loads the daemon configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults match the player service this daemon was written against
const (
	defaultStreamURL    = "http://127.0.0.1:23330/subscribe-player-status"
	defaultRetryDelayMs = 5000
	defaultCoverSize    = 60
	defaultCoverTimeout = 3000
	defaultCoverTries   = 5
	defaultOutputDir    = "/tmp/lyricwatch"
)

func defaultFilterFields() []string {
	return []string{"lyricLineAllText", "name", "singer", "picUrl", "duration", "progress"}
}

// fileConfig is the YAML shape of the configuration file
type fileConfig struct {
	Stream struct {
		URL               string   `yaml:"url"`
		FilterFields      []string `yaml:"filter_fields"`
		RetryDelayMs      int      `yaml:"retry_delay_ms"`
		ClearOnDisconnect *bool    `yaml:"clear_on_disconnect"`
	} `yaml:"stream"`
	Cover struct {
		SizePx      int    `yaml:"size_px"`
		TimeoutMs   int    `yaml:"timeout_ms"`
		MaxAttempts int    `yaml:"max_attempts"`
		OutputDir   string `yaml:"output_dir"`
	} `yaml:"cover"`
	WebSocket struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"websocket"`
}

// AppConfig is the resolved application configuration. It implements
// domain.Config.
type AppConfig struct {
	streamURL         string
	filterFields      []string
	retryDelay        time.Duration
	clearOnDisconnect bool
	coverSize         int
	coverTimeout      time.Duration
	coverMaxAttempts  int
	coverOutputDir    string
	wsAddr            string
}

// Load resolves the configuration: built-in defaults, then the YAML file at
// path (skipped when path is empty), then environment variables
// (LYRICWATCH_URL, LYRICWATCH_OUTPUT_DIR, LYRICWATCH_WS_ADDR).
func Load(logger *zap.Logger, path string) (*AppConfig, error) {
	cfg := &AppConfig{
		streamURL:         defaultStreamURL,
		filterFields:      defaultFilterFields(),
		retryDelay:        defaultRetryDelayMs * time.Millisecond,
		clearOnDisconnect: true,
		coverSize:         defaultCoverSize,
		coverTimeout:      defaultCoverTimeout * time.Millisecond,
		coverMaxAttempts:  defaultCoverTries,
		coverOutputDir:    defaultOutputDir,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	logger.Info("Configuration loaded",
		zap.String("url", cfg.streamURL),
		zap.Duration("retryDelay", cfg.retryDelay),
		zap.Bool("clearOnDisconnect", cfg.clearOnDisconnect),
		zap.String("wsAddr", cfg.wsAddr))
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if fc.Stream.URL != "" {
		c.streamURL = fc.Stream.URL
	}
	if len(fc.Stream.FilterFields) > 0 {
		c.filterFields = fc.Stream.FilterFields
	}
	if fc.Stream.RetryDelayMs > 0 {
		c.retryDelay = time.Duration(fc.Stream.RetryDelayMs) * time.Millisecond
	}
	if fc.Stream.ClearOnDisconnect != nil {
		c.clearOnDisconnect = *fc.Stream.ClearOnDisconnect
	}
	if fc.Cover.SizePx > 0 {
		c.coverSize = fc.Cover.SizePx
	}
	if fc.Cover.TimeoutMs > 0 {
		c.coverTimeout = time.Duration(fc.Cover.TimeoutMs) * time.Millisecond
	}
	if fc.Cover.MaxAttempts > 0 {
		c.coverMaxAttempts = fc.Cover.MaxAttempts
	}
	if fc.Cover.OutputDir != "" {
		c.coverOutputDir = expandHome(fc.Cover.OutputDir)
	}
	if fc.WebSocket.Enabled {
		c.wsAddr = fc.WebSocket.Addr
		if c.wsAddr == "" {
			c.wsAddr = "127.0.0.1:23331"
		}
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	if v := os.Getenv("LYRICWATCH_URL"); v != "" {
		c.streamURL = v
	}
	if v := os.Getenv("LYRICWATCH_OUTPUT_DIR"); v != "" {
		c.coverOutputDir = expandHome(v)
	}
	if v := os.Getenv("LYRICWATCH_WS_ADDR"); v != "" {
		c.wsAddr = v
	}
}

// expandHome resolves a leading ~ and any environment variables in a path
func expandHome(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// SetStreamURL overrides the stream URL; used by the --url flag
func (c *AppConfig) SetStreamURL(url string) {
	c.streamURL = url
}

// StreamURL returns the base URL of the player's event stream
func (c *AppConfig) StreamURL() string { return c.streamURL }

// FilterFields returns the event types requested from the server
func (c *AppConfig) FilterFields() []string { return c.filterFields }

// RetryDelay returns the pause between a failed connection and the next attempt
func (c *AppConfig) RetryDelay() time.Duration { return c.retryDelay }

// ClearOnDisconnect reports whether a sentinel snapshot is published on disconnect
func (c *AppConfig) ClearOnDisconnect() bool { return c.clearOnDisconnect }

// CoverSize returns the square thumbnail edge in pixels
func (c *AppConfig) CoverSize() int { return c.coverSize }

// CoverTimeout returns the per-request timeout for remote cover fetches
func (c *AppConfig) CoverTimeout() time.Duration { return c.coverTimeout }

// CoverMaxAttempts returns the retry budget for a failing cover reference
func (c *AppConfig) CoverMaxAttempts() int { return c.coverMaxAttempts }

// CoverOutputDir returns where the current cover thumbnail is written
func (c *AppConfig) CoverOutputDir() string { return c.coverOutputDir }

// WebSocketAddr returns the gateway listen address, empty when disabled
func (c *AppConfig) WebSocketAddr() string { return c.wsAddr }
