package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/havenline/supportcore/coreengine/agents"
)

// zapLogger adapts a zap sugared logger to the agents.Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func NewZapLogger(level string) (agents.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	base, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	flush := func() { _ = base.Sync() }
	return &zapLogger{sugar: base.Sugar()}, flush, nil
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

func (l *zapLogger) Debug(msg string, fields ...any) { l.sugar.Debugw(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...any)  { l.sugar.Infow(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...any)  { l.sugar.Warnw(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...any) { l.sugar.Errorw(msg, fields...) }

func (l *zapLogger) Bind(fields ...any) agents.Logger {
	return &zapLogger{sugar: l.sugar.With(fields...)}
}
