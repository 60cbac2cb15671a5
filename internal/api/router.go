package api

import (
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/d60-Lab/streamfan/config"
	"github.com/d60-Lab/streamfan/internal/api/docs"
	"github.com/d60-Lab/streamfan/internal/api/handler"
	"github.com/d60-Lab/streamfan/pkg/logger"
)

// NewRouter 注册中间件与路由
func NewRouter(h *handler.Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		actors := v1.Group("/actors")
		actors.POST("", h.CreateActor)
		actors.DELETE("", h.DeleteActor)
		actors.PUT("/notifications", h.SetNotifications)

		entries := v1.Group("/entries")
		entries.POST("", h.Post)
		entries.POST("/comments", h.AddComment)

		relations := v1.Group("/relations")
		relations.POST("/follow", h.Follow)
		relations.POST("/unfollow", h.Unfollow)
		relations.POST("/approve", h.Approve)
		relations.GET("/:nick/followers", h.ListFollowers)

		v1.POST("/tasks/process", h.ProcessTasks)
	}
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Debug("request", fields...)
	}
}
