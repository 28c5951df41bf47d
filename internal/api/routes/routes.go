package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"notify-service/internal/api/handlers"
	"notify-service/internal/api/middleware"
	"notify-service/internal/service"
	"notify-service/internal/websocket"
)

type Router struct {
	engine              *gin.Engine
	notificationHandler *handlers.NotificationHandler
	wsHandler           *handlers.WSHandler
	authMW              *middleware.AuthMiddleware
	rateLimitMW         *middleware.RateLimitMiddleware
}

func NewRouter(
	svc *service.NotificationService,
	session *websocket.Session,
	rdb *redis.Client,
	jwtSecret string,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogApi())

	authMW := middleware.NewAuthMiddleware(jwtSecret)

	return &Router{
		engine:              engine,
		notificationHandler: handlers.NewNotificationHandler(svc),
		wsHandler:           handlers.NewWSHandler(session, authMW),
		authMW:              authMW,
		rateLimitMW:         middleware.NewRateLimitMiddleware(rdb),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.notificationHandler.Health)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// WebSocket endpoint; identity comes from the handshake token.
	api.GET("/ws", r.wsHandler.HandleWebSocket)

	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	{
		notifications := auth.Group("/notifications")
		notifications.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			notifications.POST("", r.notificationHandler.Send)
			notifications.POST("/batch", r.notificationHandler.SendBatch)
			notifications.POST("/schedule", r.notificationHandler.Schedule)
			notifications.GET("", r.notificationHandler.List)
			notifications.GET("/unread-count", r.notificationHandler.UnreadCount)
			notifications.GET("/stats", r.notificationHandler.Stats)
			notifications.POST("/read-all", r.notificationHandler.MarkAllRead)
			notifications.GET("/:id", r.notificationHandler.Get)
			notifications.PATCH("/:id/read", r.notificationHandler.MarkRead)
			notifications.DELETE("/:id", r.notificationHandler.Delete)
			notifications.DELETE("", r.notificationHandler.DeleteAll)
		}

		preferences := auth.Group("/preferences")
		preferences.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			preferences.GET("", r.notificationHandler.GetPreferences)
			preferences.PUT("", r.notificationHandler.UpdatePreferences)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
