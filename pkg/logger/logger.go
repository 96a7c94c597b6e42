// Package logger provides the structured logging facility shared by all
// application services. It wraps zerolog behind a small API so services do
// not depend on the backend directly.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// Logger is a leveled, structured logger. The zero value is not usable; use
// New or NewDefault.
type Logger struct {
	zl zerolog.Logger
}

// New builds a logger from configuration. Unknown levels fall back to info,
// unknown outputs to stderr.
func New(cfg LoggingConfig) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "app"
		}
		name := prefix + "-" + time.Now().UTC().Format("20060102") + ".log"
		if f, ferr := os.OpenFile(filepath.Clean(name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			out = f
		}
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewDefault returns an info-level JSON logger tagged with a component name.
func NewDefault(component string) *Logger {
	zl := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &Logger{zl: zl}
}

// SetOutput redirects log output. Intended for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.zl = l.zl.Output(w)
}

// WithField returns a logger carrying an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger carrying the error as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

func (l *Logger) Debug(msg string)                  { l.zl.Debug().Msg(msg) }
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Info(msg string)                   { l.zl.Info().Msg(msg) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warn(msg string)                   { l.zl.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Error(msg string)                  { l.zl.Error().Msg(msg) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
