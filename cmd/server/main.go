package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trust-platform/backend/internal/auth"
	"trust-platform/backend/internal/db"
	"trust-platform/backend/internal/locks"
	"trust-platform/backend/internal/middleware"
	"trust-platform/backend/internal/presence"
	"trust-platform/backend/internal/redis"
	"trust-platform/backend/internal/server/game"
	"trust-platform/backend/internal/server/handlers"
	"trust-platform/backend/internal/server/persistence"
	ws "trust-platform/backend/internal/server/websocket"
	"trust-platform/backend/internal/stats"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config := LoadConfig()

	database, err := db.New(config.DBConfig)
	if err != nil {
		log.Fatal("Database connection failed:", err)
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database connection:", err)
	}
	defer sqlDB.Close()

	// Redis is optional. Without it the server still runs; presence heartbeats
	// and the instance lock are simply skipped.
	var redisClient *redis.Client
	if config.RedisEnabled {
		redisClient, err = redis.New(config.RedisConfig)
		if err != nil {
			log.Printf("[MAIN] Redis unavailable, continuing without it: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	if redisClient != nil {
		lock, err := locks.AcquireInstanceLock(context.Background(), redisClient, "coordination-engine")
		if err != nil {
			log.Fatal("Another instance holds the coordination lock:", err)
		}
		defer lock.Release(context.Background())
	}

	authService := auth.NewService(config.JWTSecret)
	statsService := stats.NewService(database.DB)

	offline, err := persistence.OpenOfflineQueue(config.OfflineQueuePath)
	if err != nil {
		log.Fatal("Failed to open offline queue:", err)
	}
	defer offline.Stop()

	store := persistence.NewGormStore(database.DB, statsService)
	bridge := persistence.NewBridge(store, offline)
	offline.Start()

	tracker := presence.NewTracker(redisClient)
	server := game.NewServer(authService, bridge, tracker)
	go server.Run()
	defer server.Stop()

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	httpLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig)
	defer httpLimiter.Stop()
	r.Use(httpLimiter.GinMiddleware())

	// Public routes
	r.POST("/api/auth/register", func(c *gin.Context) {
		handlers.HandleRegister(c, database, authService)
	})
	r.POST("/api/auth/login", func(c *gin.Context) {
		handlers.HandleLogin(c, database, authService)
	})
	r.GET("/api/leaderboard", func(c *gin.Context) {
		handlers.HandleLeaderboard(c, statsService)
	})

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(handlers.AuthMiddleware(authService))
	{
		authorized.GET("/api/user", func(c *gin.Context) {
			handlers.HandleGetCurrentUser(c, database)
		})
		authorized.GET("/api/stats", func(c *gin.Context) {
			handlers.HandleGetStats(c, statsService)
		})
		authorized.GET("/api/history", func(c *gin.Context) {
			handlers.HandleGetHistory(c, database)
		})
	}

	// Websocket endpoint. Authentication happens in-band via REGISTER, so
	// guests can connect without a token.
	r.GET("/ws", func(c *gin.Context) {
		ws.HandleWebSocket(c, server.OnMessage, server.OnClose)
	})

	srv := &http.Server{
		Addr:    ":" + config.ServerPort,
		Handler: r,
	}

	go func() {
		log.Printf("[MAIN] Server listening on port %s", config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[MAIN] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("[MAIN] Forced shutdown:", err)
	}
}
