package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is a component-scoped structured logger.
type Logger struct {
	z *zap.Logger
}

var (
	baseMu sync.RWMutex
	base   = zap.NewNop()
)

// Init builds the process-wide zap logger. It must be called once from main
// before any component logger is created; until then loggers are no-ops.
func Init(service, level string) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		if err := ensureLogFile(logFile); err != nil {
			return fmt.Errorf("prepare log file: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, logFile)
	}

	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.InitialFields = map[string]any{"service": service}

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	baseMu.Lock()
	base = l
	baseMu.Unlock()
	zap.ReplaceGlobals(l)
	return nil
}

// Sync flushes buffered entries. Safe to call on shutdown.
func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}

// NewLogger returns a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{z: base.With(zap.String("component", component))}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// With returns a child logger with the fields bound.
func (l *Logger) With(fields Fields) *Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{z: l.zap().With(toZapFields(fields)...)}
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	l.zap().Debug(msg, toZapFields(fields...)...)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.zap().Info(msg, toZapFields(fields...)...)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	l.zap().Warn(msg, toZapFields(fields...)...)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	l.zap().Error(msg, toZapFields(fields...)...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.zap().Fatal(msg, toZapFields(fields...)...)
}

func (l *Logger) zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Infof logs an unstructured line on the process logger.
func Infof(format string, args ...interface{}) {
	baseMu.RLock()
	defer baseMu.RUnlock()
	base.Sugar().Infof(format, args...)
}

func toZapFields(fields ...Fields) []zap.Field {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	out := make([]zap.Field, 0, n)
	for _, f := range fields {
		for k, v := range f {
			if err, ok := v.(error); ok {
				out = append(out, zap.NamedError(k, err))
				continue
			}
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func ensureLogFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		f, createErr := os.OpenFile(path, os.O_CREATE, 0o644)
		if createErr != nil {
			return createErr
		}
		_ = f.Close()
	}
	return nil
}
