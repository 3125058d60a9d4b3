package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	base *zap.Logger
}

// NewZapLogger builds a zap-backed Logger. "development" gets a console
// encoder at debug; anything else logs JSON at cfg.Level.
func NewZapLogger(cfg Config) (Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level.zap())
	zcfg.Encoding = "json"

	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.MessageKey = "message"

	base, err := zcfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}

	return &zapLogger{
		base: base.With(
			zap.String("service", cfg.ServiceName),
			zap.String("environment", cfg.Environment),
		),
	}, nil
}

// NewNop discards everything.
func NewNop() Logger {
	return &zapLogger{base: zap.NewNop()}
}

func (l *zapLogger) write(base *zap.Logger, lvl zapcore.Level, msg string, fields []Field) {
	if ce := base.Check(lvl, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.write(l.base, zap.DebugLevel, msg, fields) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.write(l.base, zap.InfoLevel, msg, fields) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.write(l.base, zap.WarnLevel, msg, fields) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.write(l.base, zap.ErrorLevel, msg, fields) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.write(l.base, zap.FatalLevel, msg, fields) }

func (l *zapLogger) DebugCtx(ctx context.Context, msg string, fields ...Field) {
	l.write(l.contextual(ctx), zap.DebugLevel, msg, fields)
}

func (l *zapLogger) InfoCtx(ctx context.Context, msg string, fields ...Field) {
	l.write(l.contextual(ctx), zap.InfoLevel, msg, fields)
}

func (l *zapLogger) WarnCtx(ctx context.Context, msg string, fields ...Field) {
	l.write(l.contextual(ctx), zap.WarnLevel, msg, fields)
}

func (l *zapLogger) ErrorCtx(ctx context.Context, msg string, fields ...Field) {
	l.write(l.contextual(ctx), zap.ErrorLevel, msg, fields)
}

// contextual tags the base logger with request_id, user_id and the active
// trace and span ids so log lines can be joined with traces in Jaeger.
func (l *zapLogger) contextual(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, 4)

	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetUserID(ctx); id != "" {
		fields = append(fields, zap.String("user_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}

	if len(fields) == 0 {
		return l.base
	}
	return l.base.With(fields...)
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	return &zapLogger{base: l.contextual(ctx)}
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{base: l.base.With(toZapFields(fields)...)}
}

func (l *zapLogger) Sync() error {
	return l.base.Sync()
}
