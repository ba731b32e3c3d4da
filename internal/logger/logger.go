package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global backs FromContext when a context carries no logger.
	//nolint:gochecknoglobals // Commands and services share one console logger.
	global *zap.SugaredLogger
	// level is shared by every logger built without an explicit enabler, so
	// --log-level takes effect after the logger is created.
	//nolint:gochecknoglobals // See above.
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Logging must work before flags are parsed.
	global = New(level)
}

// New builds a console logger writing to stderr, leaving stdout to command output.
// A nil enabler follows the level set with SetLevel.
func New(enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	return NewWithWriter(os.Stderr, enabler, options...)
}

// NewWithWriter is New with a custom destination.
func NewWithWriter(w io.Writer, enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if enabler == nil {
		enabler = level
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoding()), zapcore.AddSync(w), enabler)

	return zap.New(core, options...).Sugar()
}

func consoleEncoding() zapcore.EncoderConfig {
	//nolint:exhaustruct // Time and function keys stay off in terminal output.
	return zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: ", ",
	}
}

// ParseLogLevel maps a --log-level or config value onto a zap level.
// Unknown names yield InfoLevel and false.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	var parsed zapcore.Level

	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || parsed.UnmarshalText([]byte(name)) != nil {
		return zapcore.InfoLevel, false
	}

	return parsed, true
}

// Level returns the shared level.
func Level() zapcore.Level {
	return level.Level()
}

// SetLevel changes the shared level for every logger built with a nil enabler.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
	_ = global.Sync()
}

// DebugKV logs message with key-value pairs at debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info logs at info level.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV logs message with key-value pairs at info level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn logs at warning level.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// WarnKV logs message with key-value pairs at warning level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV logs message with key-value pairs at error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
