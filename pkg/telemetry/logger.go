package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Logger is a zerolog.Logger carrying opsdeck's standard fields. Derived
// loggers share the output of the logger they were derived from.
type Logger struct {
	zlog   zerolog.Logger
	output io.Closer
}

type loggerContextKey struct{}

var timeFieldFormats = map[string]string{
	"unix":      zerolog.TimeFormatUnix,
	"unixms":    zerolog.TimeFormatUnixMs,
	"unixmicro": zerolog.TimeFormatUnixMicro,
	"rfc3339":   time.RFC3339,
}

// NewLogger creates a logger from cfg. Output is "stdout", "stderr" or a
// file path opened for appending; Close releases the file.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if format, ok := timeFieldFormats[cfg.TimeFormat]; ok {
		zerolog.TimeFieldFormat = format
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	zlog := zctx.Logger()

	if cfg.EnableSampling {
		zlog = zlog.Sample(&zerolog.BurstSampler{
			Burst:       uint32(cfg.SamplingInitial),
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: uint32(cfg.SamplingThereafter)},
		})
	}

	return &Logger{zlog: zlog, output: closer}, nil
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, file, nil
}

// NewWriterLogger creates a JSON logger writing to w at the given level.
func NewWriterLogger(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zlog: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Close closes the log file, if the logger writes to one.
func (l *Logger) Close() error {
	if l.output == nil {
		return nil
	}
	return l.output.Close()
}

// Zerolog exposes the underlying zerolog.Logger for event-style logging.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) derive(zctx zerolog.Context) *Logger {
	return &Logger{zlog: zctx.Logger(), output: l.output}
}

// NewComponentLogger creates a child logger for a specific component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.derive(l.zlog.With().Str("component", component))
}

// WithContext adds the logger to the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext retrieves the logger from the context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return NewNopLogger()
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.derive(l.zlog.With().Fields(fields))
}

// WithField returns a logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.zlog.With().Interface(key, value))
}

// WithWorkflow tags entries with a workflow name and run id.
func (l *Logger) WithWorkflow(name, runID string) *Logger {
	return l.derive(l.zlog.With().Str("workflow", name).Str("workflow_run_id", runID))
}

// WithOperationID tags entries with an operation id.
func (l *Logger) WithOperationID(operationID string) *Logger {
	return l.derive(l.zlog.With().Str("operation_id", operationID))
}

// WithResource tags entries with a resource kind and id.
func (l *Logger) WithResource(kind engine.ResourceType, resourceID string) *Logger {
	return l.derive(l.zlog.With().Str("resource_type", string(kind)).Str("resource_id", resourceID))
}

// WithError attaches err.
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.zlog.With().Err(err))
}

func (l *Logger) Trace(msg string) { l.zlog.Trace().Msg(msg) }

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }

func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }

func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }

func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }
