// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "llm-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	return logger
}

// SetDebugLevel switches the global log level to debug at runtime.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRun adds a run ID and symbol to the logger context.
func WithRun(logger zerolog.Logger, runID, symbol string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Str("symbol", symbol).Logger()
}

// WithStage adds a stage name to the logger context.
func WithStage(logger zerolog.Logger, stage string) zerolog.Logger {
	return logger.With().Str("stage", stage).Logger()
}

// WithAgent adds an agent name to the logger context.
func WithAgent(logger zerolog.Logger, agentName string) zerolog.Logger {
	return logger.With().Str("agent", agentName).Logger()
}

// LogModelCall logs one gateway call attempt outcome.
func LogModelCall(logger zerolog.Logger, caller, model string, tokens int, cost float64, latency time.Duration, err error) {
	event := logger.Debug().
		Str("event", "model_call").
		Str("caller", caller).
		Str("model", model).
		Int("tokens", tokens).
		Float64("cost", cost).
		Dur("latency", latency)

	if err != nil {
		event.Err(err).Msg("Model call failed")
	} else {
		event.Msg("Model call completed")
	}
}

// LogStage logs the completion of a pipeline stage.
func LogStage(logger zerolog.Logger, stage string, confidence float64, tokens int, cost float64) {
	logger.Info().
		Str("event", "stage").
		Str("stage", stage).
		Float64("confidence", confidence).
		Int("tokens", tokens).
		Float64("cost", cost).
		Msg("Stage completed")
}

// LogIteration logs one ReAct loop step. The logger is expected to carry
// the agent context already; tool is empty for non-action steps.
func LogIteration(logger zerolog.Logger, iteration int, kind, tool string) {
	event := logger.Debug().
		Str("event", "react_iteration").
		Int("iteration", iteration).
		Str("step", kind)
	if tool != "" {
		event = event.Str("tool", tool)
	}
	event.Msg("ReAct step")
}

// LogDecision logs a final decision.
func LogDecision(logger zerolog.Logger, runID, symbol, action string, confidence float64, status string) {
	logger.Info().
		Str("event", "decision").
		Str("run_id", runID).
		Str("symbol", symbol).
		Str("action", action).
		Float64("confidence", confidence).
		Str("status", status).
		Msg("Decision produced")
}
