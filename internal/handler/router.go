package handler

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/chgk-bot/internal/middleware"
)

// RouterConfig описывает маршруты HTTP сервера. Nil-обработчики не регистрируются.
type RouterConfig struct {
	Webhook        *WebhookHandler
	WebhookPath    string
	Admin          *AdminHandler
	WS             *WSHandler
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	TrustedProxies []string
}

// NewRouter собирает gin-роутер
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}

	router.GET("/", Health)
	router.GET("/healthz", Health)

	if cfg.Webhook != nil {
		router.POST(cfg.WebhookPath, cfg.Webhook.Handle)
	}

	if cfg.Admin == nil || cfg.Auth == nil {
		return router
	}

	admin := router.Group("/api/admin")
	admin.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	{
		login := admin.Group("")
		if cfg.RateLimiter != nil {
			login.Use(cfg.RateLimiter.Limit(middleware.AdminLoginRateLimitConfig()))
		}
		login.POST("/login", cfg.Admin.Login)

		protected := admin.Group("")
		protected.Use(cfg.Auth.RequireAdmin())
		if cfg.RateLimiter != nil {
			protected.Use(cfg.RateLimiter.Limit(middleware.AdminAPIRateLimitConfig()))
		}
		protected.GET("/pool/stats", cfg.Admin.GetPoolStats)
		protected.POST("/replenish", cfg.Admin.Replenish)
		protected.GET("/replenish/last", cfg.Admin.GetLastReplenish)
		protected.GET("/analytics", middleware.ExtractWindowQuery("hours"), cfg.Admin.GetAnalytics)
		protected.GET("/sessions/export", middleware.ExtractWindowQuery("hours"), cfg.Admin.ExportSessions)
		if cfg.WS != nil {
			protected.GET("/events", cfg.WS.HandleConnection)
		}
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
