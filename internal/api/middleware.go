package api

import (
	"net/http"
	"time"

	"tron-custody-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIdHeader = "X-Request-Id"

// requestContext attaches a models.RequestContext to the request context.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(requestIdHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Header(requestIdHeader, requestId)

		rc := &models.RequestContext{
			RequestId: requestId,
			ClientIP:  c.ClientIP(),
			Route:     c.FullPath(),
		}
		c.Request = c.Request.WithContext(models.WithRequestContext(c.Request.Context(), rc))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", models.RequestId(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.L().Error("HTTP request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			zap.L().Warn("HTTP request", fields...)
		default:
			zap.L().Info("HTTP request", fields...)
		}
	}
}

func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("Handler panicked",
					zap.String("request_id", models.RequestId(c.Request.Context())),
					zap.String("route", c.FullPath()),
					zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
			}
		}()
		c.Next()
	}
}
