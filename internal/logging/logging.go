// Package logging adapts zap to admission operation logs and HTTP request logs.
package logging

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"

	statusOK       = "ok"
	statusRejected = "rejected"
)

// OperationLogger writes admission operation logs with zap.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger wraps logger; nil falls back to a no-op logger.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger}
}

// LogOperation logs ok outcomes at info, rejections at warn, and failures at error.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry admission.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Bool("created", entry.Created),
	}
	if entry.Kind != "" {
		fields = append(fields, zap.String("kind", entry.Kind.String()))
	}
	if entry.EntityID != 0 {
		fields = append(fields, zap.Int64("entity_id", entry.EntityID))
	}
	if entry.StudentEmail != "" {
		fields = append(fields, zap.String("student_email", entry.StudentEmail))
	}
	if entry.SessionID != "" {
		fields = append(fields, zap.String("session_id", entry.SessionID))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	switch entry.Status {
	case statusOK:
		operationLogger.logger.Info("admission operation", fields...)
	case statusRejected:
		operationLogger.logger.Warn("admission operation rejected", fields...)
	default:
		operationLogger.logger.Error("admission operation failed", fields...)
	}
}

// RequestLogger assigns a request id and logs every completed request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx *gin.Context) {
		started := time.Now()
		requestID := ctx.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set(RequestIDKey, requestID)
		ctx.Header(RequestIDHeader, requestID)

		ctx.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.String("errors", ctx.Errors.String()))
		}
		if ctx.Writer.Status() >= 500 {
			logger.Error("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}

// RequestID returns the id assigned by RequestLogger, if any.
func RequestID(ctx *gin.Context) string {
	return ctx.GetString(RequestIDKey)
}
