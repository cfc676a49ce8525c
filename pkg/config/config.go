/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/lineartools/pkg/compression"
)

// Config represents the linear-tools configuration
type Config struct {
	Threads int     `yaml:"threads"`
	Linear  Linear  `yaml:"linear"`
	Anvil   Anvil   `yaml:"anvil"`
	Logging Logging `yaml:"logging"`
	Journal Journal `yaml:"journal"`
	Metrics Metrics `yaml:"metrics"`
}

// Linear contains settings for writing Linear files
type Linear struct {
	CompressionLevel int `yaml:"compression_level"`
}

// Anvil contains settings for writing Anvil files
type Anvil struct {
	Compression         string `yaml:"compression"`
	CompressionLevel    int    `yaml:"compression_level"`
	PreserveCompression bool   `yaml:"preserve_compression"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Journal contains the conversion journal location. Empty disables it.
type Journal struct {
	Dir string `yaml:"dir"`
}

// Metrics contains the metrics textfile location. Empty disables it.
type Metrics struct {
	File string `yaml:"file"`
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Threads: 0,
		Linear: Linear{
			CompressionLevel: 6,
		},
		Anvil: Anvil{
			Compression:      compression.MethodZlib.String(),
			CompressionLevel: compression.DefaultLevel,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks every setting and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return &ConfigError{Field: "threads", Reason: fmt.Sprintf("%d is negative", c.Threads)}
	}
	if c.Linear.CompressionLevel < compression.MinZstdLevel || c.Linear.CompressionLevel > compression.MaxZstdLevel {
		return &ConfigError{
			Field: "linear.compression_level",
			Reason: fmt.Sprintf("%d outside %d-%d",
				c.Linear.CompressionLevel, compression.MinZstdLevel, compression.MaxZstdLevel),
		}
	}
	if _, err := c.AnvilMethod(); err != nil {
		return &ConfigError{Field: "anvil.compression", Reason: err.Error()}
	}
	if c.Anvil.CompressionLevel < -1 || c.Anvil.CompressionLevel > 9 {
		return &ConfigError{
			Field:  "anvil.compression_level",
			Reason: fmt.Sprintf("%d outside -1-9", c.Anvil.CompressionLevel),
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return &ConfigError{Field: "logging.level", Reason: err.Error()}
	}
	return nil
}

// AnvilMethod returns the configured Anvil chunk compression.
func (c *Config) AnvilMethod() (compression.Method, error) {
	return compression.ParseMethod(strings.ToLower(c.Anvil.Compression))
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() (logrus.Level, error) {
	return logrus.ParseLevel(c.Logging.Level)
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes the default configuration, with the journal placed
// next to the config file.
func BootstrapConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	config.Journal.Dir = filepath.Join(filepath.Dir(configPath), "journal")

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./linear-tools.yaml"
	}

	// For Linux/macOS, use ~/.config/linear-tools/config.yaml
	configDir := filepath.Join(homeDir, ".config", "linear-tools")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
