package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// traceLevel sits one step below zap's debug level
const traceLevel = zapcore.DebugLevel - 1

// Config contains logging configuration
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or a file path
}

// ZapLogger implements Logger on top of a zap.Logger
type ZapLogger struct {
	base   *zap.Logger
	module string
}

// NewZapLogger creates a logger from the given configuration
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		sink = zapcore.Lock(os.Stdout)
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		if err := ensureFileDirectory(cfg.Output); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		ws, _, err := zap.Open(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", cfg.Output, err)
		}
		sink = ws
	}

	return newZapLogger(sink, ParseLevel(cfg.Level), cfg.Format == "json"), nil
}

// NewTestLogger creates a JSON logger writing to w, for inspecting output in tests
func NewTestLogger(w io.Writer, level LogLevel) *ZapLogger {
	return newZapLogger(zapcore.AddSync(w), level, true)
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return &ZapLogger{base: zap.NewNop()}
}

func newZapLogger(sink zapcore.WriteSyncer, level LogLevel, json bool) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"

	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(toZapLevel(level)))
	return &ZapLogger{base: zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))}
}

// encodeLevel renders the custom trace level by name
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace:
		return traceLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Module returns a child logger; nested module names are dot-joined
func (l *ZapLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &ZapLogger{base: l.base, module: module}
}

func (l *ZapLogger) Trace(msg string, fields ...Field) { l.write(traceLevel, msg, fields) }
func (l *ZapLogger) Debug(msg string, fields ...Field) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.write(zapcore.InfoLevel, msg, fields) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.write(zapcore.WarnLevel, msg, fields) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.write(zapcore.ErrorLevel, msg, fields) }

// Log writes at an explicit level
func (l *ZapLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.write(toZapLevel(level), msg, fields)
}

// With returns a logger that adds fields to every entry
func (l *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{base: l.base.With(toZapFields(fields)...), module: l.module}
}

// WithContext attaches the trace id carried by ctx
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		return l.With(String("trace_id", traceID))
	}
	return l
}

// Flush syncs the underlying sink. Sync errors from terminals are ignored.
func (l *ZapLogger) Flush() error {
	if err := l.base.Sync(); err != nil && !isIgnorableSyncError(err) {
		return err
	}
	return nil
}

func (l *ZapLogger) write(level zapcore.Level, msg string, fields []Field) {
	ce := l.base.Check(level, msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+1)
	if l.module != "" {
		zf = append(zf, zap.String("module", l.module))
	}
	zf = append(zf, toZapFields(fields)...)
	ce.Write(zf...)
}

func toZapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		f = redactField(f)
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	return zf
}

// stdout and stderr return EINVAL or ENOTTY on Sync for character devices
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// loggerContextKey is a typed key for context values
type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID to set values.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
