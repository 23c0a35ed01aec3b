// Package logging wraps log/slog with a console handler and a rotating JSON
// file handler shared by the server and the ingestion tools.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/dosesegura/dose-segura/config"
)

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger with development defaults.
// An empty logDir logs to the console only.
func InitLogger(logDir string) {
	InitLoggerWithConfig(logDir, config.EnvDevelopment, "", 4, 100*1024*1024)
}

// InitLoggerWithConfig initializes the global logger from configuration values
func InitLoggerWithConfig(logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	if DefaultLoggingService != nil {
		_ = DefaultLoggingService.Close()
	}

	consoleLevel := GetConsoleLogLevel(env, logLevel, verboseTestRun())
	logger, rotating := SetupLogger(logDir, consoleLevel, retentionWeeks, maxFileSize)

	DefaultLoggingService = &LoggingService{
		Logger:   logger,
		rotating: rotating,
	}
	slog.SetDefault(logger)
}

// Close releases the rotating file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.rotating == nil {
		return nil
	}
	return s.rotating.Close()
}

// Close closes the global logging service
func Close() error {
	return DefaultLoggingService.Close()
}

// ResetForTest installs a fresh global logger writing under dir and closes it
// when the test ends.
func ResetForTest(t *testing.T, dir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithConfig(dir, env, logLevel, retentionWeeks, maxFileSize)
	t.Cleanup(func() {
		_ = Close()
		DefaultLoggingService = nil
	})
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. An explicit LOG_LEVEL wins,
// except under tests where the console stays quiet unless -v is set.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevel != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the level for the file handler, which keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// verboseTestRun reports whether the binary is a test run with -test.v
func verboseTestRun() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-test.v" || arg == "-test.v=true" {
			return true
		}
	}
	return false
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}
