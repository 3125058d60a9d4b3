package logger

import (
	"context"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface used across the service. Implementations
// must be safe for concurrent use.
type Logger interface {
	Info(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// The Ctx variants attach the request, user and trace ids carried by ctx.
	InfoCtx(ctx context.Context, msg string, fields ...Field)
	DebugCtx(ctx context.Context, msg string, fields ...Field)
	WarnCtx(ctx context.Context, msg string, fields ...Field)
	ErrorCtx(ctx context.Context, msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	With(fields ...Field) Logger

	Sync() error
}

type Config struct {
	ServiceName string
	Environment string
	Level       Level
}

// Level is a log severity. Values line up with zapcore levels.
type Level int8

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
	FatalLevel = Level(zapcore.FatalLevel)
)

func (l Level) String() string {
	return zapcore.Level(l).String()
}

func (l Level) zap() zapcore.Level {
	return zapcore.Level(l)
}

// ParseLevel maps LOG_LEVEL values such as "debug" or "WARN" to a Level.
// Unknown values fall back to InfoLevel.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return WarnLevel
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return InfoLevel
	}
	switch lvl {
	case zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel, zapcore.FatalLevel:
		return Level(lvl)
	default:
		return InfoLevel
	}
}
