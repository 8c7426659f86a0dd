// Package zaplog adapts go.uber.org/zap to core.Logger.
package zaplog

import (
	"io"
	"os"
	"strings"

	"github.com/Swind/go-lane-executor/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes core.Logger calls to a zap.Logger.
type Logger struct {
	z *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps z. A nil z yields a no-op logger.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// NewJSON builds a JSON zap logger writing to w at the given level.
// A nil w writes to stdout.
func NewJSON(w io.Writer, level zapcore.Level) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	zc := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(zc)
}

// ParseLevel maps a level name to a zap level, falling back to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...core.Field) { l.z.Debug(msg, toZap(fields)...) }
func (l *Logger) Info(msg string, fields ...core.Field)  { l.z.Info(msg, toZap(fields)...) }
func (l *Logger) Warn(msg string, fields ...core.Field)  { l.z.Warn(msg, toZap(fields)...) }
func (l *Logger) Error(msg string, fields ...core.Field) { l.z.Error(msg, toZap(fields)...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger { return l.z }

func toZap(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case []byte:
			// stack traces
			out = append(out, zap.ByteString(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}
