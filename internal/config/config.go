/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the whisper bridge
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Journal JournalConfig `yaml:"journal"`
	NATS    NATSConfig    `yaml:"nats"`
}

// EngineConfig holds inference defaults that requests cannot override
type EngineConfig struct {
	Threads    int `yaml:"threads"`    // used when a request omits "threads"
	Processors int `yaml:"processors"` // >1 splits inference across processors
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// JournalConfig holds the optional SQLite request journal configuration
type JournalConfig struct {
	Path       string `yaml:"path"` // empty disables the journal
	MaxEntries int    `yaml:"max_entries"`
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Subject        string        `yaml:"subject"`
	Queue          string        `yaml:"queue"`
	EventsSubject  string        `yaml:"events_subject"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxReconnect   int           `yaml:"max_reconnect"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Threads:    DefaultThreads(),
			Processors: 1,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Journal: JournalConfig{
			MaxEntries: 1000,
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Subject:        "whisper.requests",
			Queue:          "whisper-bridge",
			EventsSubject:  "whisper.events",
			RequestTimeout: 10 * time.Minute,
			MaxReconnect:   -1,
			ReconnectWait:  2 * time.Second,
		},
	}
}

// DefaultThreads is min(4, available hardware concurrency)
func DefaultThreads() int {
	return min(4, runtime.NumCPU())
}

// Load loads configuration from environment variables with defaults.
// When WHISPER_BRIDGE_CONFIG names a YAML file it is applied before the
// environment, so environment variables always win.
func Load() (*Config, error) {
	config := Defaults()

	if path := os.Getenv("WHISPER_BRIDGE_CONFIG"); path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}

	config.Engine.Threads = getEnvInt("WHISPER_BRIDGE_THREADS", config.Engine.Threads)
	config.Engine.Processors = getEnvInt("WHISPER_BRIDGE_PROCESSORS", config.Engine.Processors)

	config.Logging.Level = getEnvString("WHISPER_BRIDGE_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnvString("WHISPER_BRIDGE_LOG_FORMAT", config.Logging.Format)
	config.Logging.Output = getEnvString("WHISPER_BRIDGE_LOG_OUTPUT", config.Logging.Output)

	config.Journal.Path = getEnvString("WHISPER_BRIDGE_JOURNAL_PATH", config.Journal.Path)
	config.Journal.MaxEntries = getEnvInt("WHISPER_BRIDGE_JOURNAL_MAX_ENTRIES", config.Journal.MaxEntries)

	config.NATS.URL = getEnvString("NATS_URL", config.NATS.URL)
	config.NATS.Subject = getEnvString("NATS_SUBJECT", config.NATS.Subject)
	config.NATS.Queue = getEnvString("NATS_QUEUE", config.NATS.Queue)
	config.NATS.EventsSubject = getEnvString("NATS_EVENTS_SUBJECT", config.NATS.EventsSubject)
	config.NATS.RequestTimeout = getEnvDuration("NATS_REQUEST_TIMEOUT", config.NATS.RequestTimeout)
	config.NATS.MaxReconnect = getEnvInt("NATS_MAX_RECONNECT", config.NATS.MaxReconnect)
	config.NATS.ReconnectWait = getEnvDuration("NATS_RECONNECT_WAIT", config.NATS.ReconnectWait)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// mergeFile overlays values present in a YAML file onto c
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Engine.Threads < 1 {
		return fmt.Errorf("engine threads must be positive: %d", c.Engine.Threads)
	}

	if c.Engine.Processors < 1 {
		return fmt.Errorf("engine processors must be positive: %d", c.Engine.Processors)
	}

	if c.Journal.Path != "" && c.Journal.MaxEntries <= 0 {
		return fmt.Errorf("journal max entries must be positive: %d", c.Journal.MaxEntries)
	}

	if strings.TrimSpace(c.NATS.Subject) == "" {
		return fmt.Errorf("NATS subject must be provided")
	}

	if c.NATS.RequestTimeout <= 0 {
		return fmt.Errorf("NATS request timeout must be positive: %s", c.NATS.RequestTimeout)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
