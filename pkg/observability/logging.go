package observability

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger provides structured logging for the quantization core. It is a
// thin wrapper over zap.SugaredLogger: the level/field vocabulary matches
// the rest of this module's ambient stack, but every write goes through
// zap's encoder rather than a hand-rolled formatter.
type Logger struct {
	sugar  *zap.SugaredLogger
	fields map[string]interface{}
}

// NewLogger creates a new logger at the given minimum level, writing
// JSON-encoded entries to stderr.
func NewLogger(level LogLevel) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap's production config only fails to build on a bad output path;
		// fall back to a no-op core rather than panic from a logging helper.
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewDefaultLogger creates a logger at INFO level.
func NewDefaultLogger() *Logger {
	return NewLogger(INFO)
}

// newLoggerFromCore builds a Logger around a caller-supplied zapcore.Core,
// bypassing the production JSON encoder. Used by tests to assert on
// observed log entries via zap/zaptest/observer.
func newLoggerFromCore(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core).Sugar()}
}

func (l *Logger) flatten(fields ...map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, 2*(len(l.fields)+4))
	for k, v := range l.fields {
		args = append(args, k, v)
	}
	for _, fs := range fields {
		for k, v := range fs {
			args = append(args, k, v)
		}
	}
	return args
}

// WithFields returns a new logger with additional fields attached to every
// subsequent entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sugar: l.sugar, fields: merged}
}

// WithField returns a new logger with one additional field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.sugar.Debugw(msg, l.flatten(fields...)...)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.sugar.Infow(msg, l.flatten(fields...)...)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.sugar.Warnw(msg, l.flatten(fields...)...)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.sugar.Errorw(msg, l.flatten(fields...)...)
}

func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.sugar.Fatalw(msg, l.flatten(fields...)...)
}

// Sync flushes any buffered log entries. Callers should defer it once at
// process shutdown.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// LogOperation logs the start and end of a lifecycle operation (training,
// container build) including its duration and, on failure, the error.
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Info("operation started", map[string]interface{}{"operation": operation})

	err := fn()

	duration := time.Since(start)
	if err != nil {
		l.Error("operation failed", map[string]interface{}{
			"operation": operation,
			"duration":  duration,
			"error":     err.Error(),
		})
	} else {
		l.Info("operation completed", map[string]interface{}{
			"operation": operation,
			"duration":  duration,
		})
	}

	return err
}

// LogOperationWithFields is LogOperation with extra fields merged in first.
func (l *Logger) LogOperationWithFields(operation string, fields map[string]interface{}, fn func() error) error {
	return l.WithFields(fields).LogOperation(operation, fn)
}

// Global logger instance, used by packages that don't carry their own.
var globalLogger = NewDefaultLogger()

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(logger *Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *Logger {
	return globalLogger
}

// ParseLogLevel parses a log level string, defaulting to INFO on failure.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	case "FATAL", "fatal":
		return FATAL
	default:
		return INFO
	}
}
