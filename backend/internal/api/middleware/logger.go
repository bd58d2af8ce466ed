package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thunder-scheduler/backend/pkg/logger"
)

// Logger 请求日志中间件（基于 Zap 结构化日志）
// 同时把带 request_id 的子日志器放入请求 ctx，供 service 层取用
func Logger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLogger := base
		if rid := GetRequestID(c); rid != "" {
			reqLogger = base.With(zap.String("request_id", rid))
		}
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		if statusCode >= 500 {
			reqLogger.Error("请求处理失败", fields...)
		} else if statusCode >= 400 {
			reqLogger.Warn("客户端错误", fields...)
		} else {
			reqLogger.Info("请求完成", fields...)
		}
	}
}
