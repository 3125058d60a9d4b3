package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

const (
	ginRequestIDKey = "request_id"
	ginLoggerKey    = "logger"
)

// GinMiddleware propagates the caller's X-Request-ID (minting one when
// absent) and writes one access log line per request. The level follows the
// status class: 5xx error, 4xx warn, otherwise info.
func GinMiddleware(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(ginRequestIDKey, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := c.Writer.Status()
		fields := []Field{
			String("method", c.Request.Method),
			String("route", route),
			String("client_ip", c.ClientIP()),
			Int("status", status),
			Int("response_bytes", c.Writer.Size()),
			Duration("latency", elapsed),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, String("error", errs))
		}

		ctx := c.Request.Context()
		switch status / 100 {
		case 5:
			log.ErrorCtx(ctx, "request served", fields...)
		case 4:
			log.WarnCtx(ctx, "request served", fields...)
		default:
			log.InfoCtx(ctx, "request served", fields...)
		}
	}
}

func GetRequestIDFromGin(c *gin.Context) string {
	if id := c.GetString(ginRequestIDKey); id != "" {
		return id
	}
	return GetRequestID(c.Request.Context())
}

// GetLoggerFromGin returns the logger installed by InjectLogger, bound to the
// request context. Without InjectLogger it returns a no-op logger.
func GetLoggerFromGin(c *gin.Context) Logger {
	if l, ok := c.Value(ginLoggerKey).(Logger); ok {
		return l.WithContext(c.Request.Context())
	}
	return NewNop()
}

func InjectLogger(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ginLoggerKey, log)
		c.Next()
	}
}
