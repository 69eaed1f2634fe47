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

package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// OutputOff disables logging entirely
const OutputOff = "off"

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
	Output string // "stderr", "stdout", a file path, or "off"
}

// Initialize sets up the global logger based on environment variables
func Initialize() error {
	config := LogConfig{
		Level:  getEnvOrDefault("WHISPER_BRIDGE_LOG_LEVEL", "info"),
		Format: getEnvOrDefault("WHISPER_BRIDGE_LOG_FORMAT", "console"),
		Output: getEnvOrDefault("WHISPER_BRIDGE_LOG_OUTPUT", "stderr"),
	}

	return InitializeWithConfig(config)
}

// InitializeWithConfig sets up the global logger with provided configuration
func InitializeWithConfig(config LogConfig) error {
	logger, err := New(config)
	if err != nil {
		return err
	}

	// Set global instances
	Logger = logger
	Sugar = logger.Sugar()

	Sugar.Debugf("Structured logging initialized (level: %s, format: %s, output: %s)",
		config.Level, config.Format, config.Output)

	return nil
}

// New builds a logger from the configuration without touching the globals.
// Components that take an injected logger use this directly.
func New(config LogConfig) (*zap.Logger, error) {
	output := strings.TrimSpace(config.Output)
	if strings.EqualFold(output, OutputOff) {
		return zap.NewNop(), nil
	}
	if output == "" {
		output = "stderr"
	}

	var zapConfig zap.Config

	// Configure base settings based on format
	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Set log level
	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		// Default to info level if parsing fails
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
}

// Named returns a child of the global logger, or a no-op logger before Initialize
func Named(component string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.With(zap.String("component", component))
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		if err := Logger.Sync(); err != nil {
			// Sync fails on stderr/stdout on some systems; nothing useful to do
			_ = err
		}
	}
}

// Close cleans up the logger
func Close() {
	Sync()
}

// LogNATSEvent logs NATS messaging events
func LogNATSEvent(subject, action string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "messaging"),
		zap.String("subject", subject),
		zap.String("action", action),
	}

	allFields := append(baseFields, fields...)
	Logger.Info("NATS event", allFields...)
}

// LogJournalOperation logs request journal operations
func LogJournalOperation(operation string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "journal"),
		zap.String("operation", operation),
	}

	allFields := append(baseFields, fields...)
	Logger.Debug("Journal operation", allFields...)
}

// LogError logs errors with context
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.Error(err),
	}

	allFields := append(baseFields, fields...)
	Logger.Error(message, allFields...)
}

// LogWarn logs warnings with context
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	Logger.Warn(message, fields...)
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
