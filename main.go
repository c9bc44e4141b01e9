package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"wapair/config"
	"wapair/internal/handler"
	"wapair/internal/helper"
	customMiddleware "wapair/internal/middleware"
	"wapair/internal/registry"
	"wapair/internal/service"
	"wapair/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {

	// Load .env (ignore the error when the file is absent, e.g. in production)
	_ = godotenv.Load()

	cfg := config.Load()

	// feature flags
	config.OnboardEnabled = strings.ToLower(os.Getenv("ONBOARD_ENABLED")) == "true"
	config.EnableRealtime = strings.ToLower(os.Getenv("ENABLE_REALTIME")) != "false"

	log.Printf("feature flags -> onboard: %v, realtime: %v", config.OnboardEnabled, config.EnableRealtime)

	// jwt secret for the admin routes
	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is not set, admin routes are unprotected")
	}
	service.InitAuthConfig(cfg.JWTSecret)

	// reconnect-attempt counters (redis when configured, memory otherwise)
	attempts := registry.NewStore()
	defer attempts.Close()

	// WebSocket hub for lifecycle events
	hub := ws.NewHub()
	go hub.Run()

	var realtime ws.RealtimePublisher
	if config.EnableRealtime {
		realtime = hub
	}

	manager := service.NewManager(cfg, attempts, realtime)
	defer manager.Shutdown()

	// Reconnect every session that already has credentials on disk
	log.Println("Resuming existing sessions...")
	if err := manager.ResumeSessions(context.Background()); err != nil {
		log.Printf("Warning: failed to resume sessions: %v", err)
	}

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// env allow origins
	originsEnv := os.Getenv("CORS_ALLOW_ORIGINS")
	if originsEnv == "" {
		log.Println("CORS_ALLOW_ORIGINS is not set")
	}
	allowOrigins := strings.Split(originsEnv, ",")
	for i, o := range allowOrigins {
		allowOrigins[i] = strings.TrimSpace(o)
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Rate limiter configuration from env
	rateLimit := helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10)
	rateBurst := helper.GetEnvAsInt("RATE_LIMIT_BURST", 10)
	rateWindow := helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3)

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(rateLimit),
				Burst:     rateBurst,
				ExpiresIn: time.Duration(rateWindow) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"error": message,
		}
		switch code {
		case http.StatusUnauthorized:
			response["message"] = "Authentication required. Please login first."
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	// =====================================================
	// PUBLIC ROUTES (No authentication required)
	// =====================================================
	e.GET("/", handler.Health)
	e.GET("/pair", handler.Pair(manager))
	e.GET("/pair/qr", handler.PairQR(manager))
	e.POST("/login", handler.LoginAdmin(cfg))

	// =====================================================
	// ADMIN ROUTES (JWT required when a secret is set)
	// =====================================================
	admin := e.Group("", customMiddleware.JWTAuthMiddleware())
	admin.GET("/status", handler.Status(manager))
	admin.POST("/reset/:number", handler.ResetAttempts(manager))
	admin.GET("/ws", handler.WebSocketHandler(hub))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(e.Start(":" + cfg.Port))
}
