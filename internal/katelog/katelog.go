// Package katelog wires Kate's components to a single structured logger.
// Tracing internals are out of scope for the core; this is the minimal
// ambient logging layer every component in the teacher's tree carries
// regardless of domain.
package katelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the small surface Kate's components depend on, so that the
// concrete zap logger stays swappable (tests use a no-op logger).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	With(fields ...interface{}) Logger
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// New builds a production zap-backed logger at the given level name
// ("debug", "info", "warn", "error"); unknown names fall back to "info".
func New(level string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &zapLogger{l: base.Sugar()}
}

// Nop returns a logger that discards everything, for tests and embedders
// that want Kate silent.
func Nop() Logger {
	return &zapLogger{l: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
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

func (z *zapLogger) Debugf(format string, args ...interface{}) { z.l.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.l.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})  { z.l.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.l.Errorf(format, args...) }

func (z *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}
