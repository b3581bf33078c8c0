package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridebid/internal/config"
	"ridebid/internal/handlers"
	"ridebid/internal/middleware"
	mongorepo "ridebid/internal/repositories/mongodb"
	"ridebid/internal/services"
	"ridebid/pkg/cache"
	"ridebid/pkg/database"
	"ridebid/pkg/logger"
	"ridebid/pkg/notify"
	"ridebid/pkg/websocket"
	"ridebid/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	mongoDB, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(indexCtx, mongoDB.Database); err != nil {
		cancelIndexes()
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndexes()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Repositories
	rideRepo := mongorepo.NewRideRepository(mongoDB.Database, redisCache)
	bidRepo := mongorepo.NewBidRepository(mongoDB.Database)
	candidateRepo := mongorepo.NewCandidateRepository(mongoDB.Database)
	otpRepo := mongorepo.NewOneTimeCodeRepository(mongoDB.Database)
	userRepo := mongorepo.NewUserRepository(mongoDB.Database)
	messageRepo := mongorepo.NewMessageRepository(mongoDB.Database)

	// Realtime hub
	wsHandler := websocket.NewHandler(log, &websocket.Config{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
	})
	hub := wsHandler.GetHub()

	// Code delivery: email always, SMS when enabled.
	senders := []notify.Sender{
		notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.FromEmail, cfg.SMTP.FromName),
	}
	if cfg.SMS.Enabled {
		senders = append(senders, notify.NewTwilioSender(cfg.SMS.Twilio.AccountSID, cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber))
	}
	sender := notify.NewMulti(senders...)

	// Services
	otpService := services.NewOneTimeCodeService(otpRepo, log, cfg.Security.OTPLength, cfg.Security.OTPExpiry)
	bidService := services.NewBidService(bidRepo, rideRepo, candidateRepo, hub, log)
	candidateService := services.NewCandidateService(candidateRepo, rideRepo, bidRepo, log)
	rideService := services.NewRideService(rideRepo, bidRepo, candidateRepo, userRepo, otpService, sender, hub, cfg.Ride, log)
	chatService := services.NewChatService(messageRepo, redisCache, hub, log)
	hub.SetInboundHandler(chatService)

	// Handlers
	rideHandler := handlers.NewRideHandler(rideService, bidService, candidateService)
	messageHandler := handlers.NewMessageHandler(messageRepo, chatService)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.RateLimit(redisCache, cfg.Security.RateLimitPerMinute, log))

	v1 := router.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, cfg.Security.JWTSecret, rideHandler, messageHandler, wsHandler)
	}

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"mongodb": "up", "redis": "up"}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoDB.Client.Ping(ctx, nil); err != nil {
			checks["mongodb"] = "down"
			status = http.StatusServiceUnavailable
		}
		if err := redisCache.Ping(ctx); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}

		health := "healthy"
		if status != http.StatusOK {
			health = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  health,
			"version": cfg.App.Version,
			"checks":  checks,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Forced shutdown: %v", err)
	}
}
