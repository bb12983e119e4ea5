// Package log provides the process-wide structured logger used by every
// Aiko component.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	Init(Config{Level: InfoLevel})
}

// WithComponent creates a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTopicPath creates a child logger tagged with a service topic path.
func WithTopicPath(topicPath string) zerolog.Logger {
	return Logger.With().Str("topic_path", topicPath).Logger()
}

// WithStream creates a child logger tagged with a stream id.
func WithStream(streamID uint64) zerolog.Logger {
	return Logger.With().Uint64("stream_id", streamID).Logger()
}

// WithFrame creates a child logger tagged with stream and frame ids.
func WithFrame(streamID, frameID uint64) zerolog.Logger {
	return Logger.With().Uint64("stream_id", streamID).Uint64("frame_id", frameID).Logger()
}

// Info logs a message at info level on the global logger.
func Info(msg string) { Logger.Info().Msg(msg) }

// Debug logs a message at debug level on the global logger.
func Debug(msg string) { Logger.Debug().Msg(msg) }

// Warn logs a message at warn level on the global logger.
func Warn(msg string) { Logger.Warn().Msg(msg) }

// Error logs a message at error level on the global logger.
func Error(msg string) { Logger.Error().Msg(msg) }

// Errorf logs an error with a formatted message on the global logger.
func Errorf(format string, err error) { Logger.Error().Err(err).Msg(format) }
