package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"thunder-scheduler/backend/config"
	"thunder-scheduler/backend/internal/api/handler"
	"thunder-scheduler/backend/internal/api/middleware"
	"thunder-scheduler/backend/pkg/jwt"
	"thunder-scheduler/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// db / rdb 仅用于健康检查，可为 nil
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) (*gin.Engine, error) {
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查与指标 ──
	r.GET("/health", healthHandler(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	editor := []gin.HandlerFunc{middleware.JWTAuth(jwtMgr), middleware.EditorOnly()}
	validateLimit := middleware.RateLimit(rdb, cfg.Validation.RateLimit, cfg.Validation.RateWindow, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")

	// 普通请求体上限
	api := v1.Group("", middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	{
		// 认证模块
		api.POST("/auth/login", h.Auth.Login)
		api.GET("/auth/me", append(editor, h.Auth.Me)...)

		// 班级模块
		classes := api.Group("/classes")
		{
			classes.GET("", h.Class.List)
			classes.GET("/:id", h.Class.Get)
			classes.POST("", append(editor, h.Class.Create)...)
			classes.PUT("/:id", append(editor, h.Class.Update)...)
			classes.DELETE("/:id", append(editor, h.Class.Delete)...)
		}

		// 教师停课模块
		availability := api.Group("/teacher-availability")
		{
			availability.GET("", h.Availability.List)
			availability.POST("", append(editor, h.Availability.Create)...)
			availability.DELETE("/:id", append(editor, h.Availability.Delete)...)
		}

		// 排课方案模块
		schedules := api.Group("/schedules")
		{
			schedules.GET("", h.Schedule.List)
			schedules.GET("/:id", h.Schedule.Get)
			schedules.DELETE("/:id", append(editor, h.Schedule.Delete)...)
			schedules.POST("/generate", append(editor, h.Schedule.Generate)...)
			schedules.POST("/:id/validate", validateLimit, h.Schedule.Validate)
			schedules.GET("/:id/validate", h.Schedule.ValidateStored)
			schedules.PUT("/:id/assignments", append(editor, h.Schedule.ReplaceAssignments)...)
			schedules.GET("/:id/export", h.Export.ExportSchedule)
		}
	}

	// 文件导入使用更大的请求体上限
	imports := v1.Group("", middleware.BodyLimit(cfg.Schedule.MaxImportBodyBytes))
	imports.Use(editor...)
	{
		imports.POST("/classes/import", h.Class.Import)
		imports.POST("/teacher-availability/import-ics", h.Availability.ImportICS)
	}

	return r, nil
}

func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "disabled", "redis": "disabled"}
		code := http.StatusOK

		if db != nil {
			status["database"] = "ok"
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				status["database"] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		// Redis 不可用只影响缓存与限流，不影响可用性
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "unavailable"
			}
		}

		c.JSON(code, status)
	}
}
