package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

const redacted = "[REDACTED]"

// Keys whose values never reach the log output, whatever the caller passes.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"authorization": {},
	"amqp_url":      {},
	"mongodb_uri":   {},
}

// Field is a structured key/value pair.
type Field interface {
	Key() string
	Value() interface{}
}

type field struct {
	zf zap.Field
}

func (f field) Key() string {
	return f.zf.Key
}

func (f field) Value() interface{} {
	if f.zf.Interface != nil {
		return f.zf.Interface
	}
	if f.zf.String != "" {
		return f.zf.String
	}
	return f.zf.Integer
}

func String(key, value string) Field { return field{zap.String(key, value)} }

func Int(key string, value int) Field { return field{zap.Int(key, value)} }

func Bool(key string, value bool) Field { return field{zap.Bool(key, value)} }

func Any(key string, value interface{}) Field { return field{zap.Any(key, value)} }

func Err(err error) Field { return field{zap.Error(err)} }

func Duration(key string, value time.Duration) Field { return field{zap.Duration(key, value)} }

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if isSensitive(f.Key()) {
			out = append(out, zap.String(f.Key(), redacted))
			continue
		}
		if zf, ok := f.(field); ok {
			out = append(out, zf.zf)
			continue
		}
		out = append(out, zap.Any(f.Key(), f.Value()))
	}
	return out
}
