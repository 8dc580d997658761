package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/crowdqueue/crowdqueue/internal/auth"
	"github.com/crowdqueue/crowdqueue/internal/config"
	"github.com/crowdqueue/crowdqueue/internal/presence"
	"github.com/crowdqueue/crowdqueue/internal/queue"
	"github.com/crowdqueue/crowdqueue/internal/reaction"
	"github.com/crowdqueue/crowdqueue/internal/room"
	"github.com/crowdqueue/crowdqueue/internal/search"
	"github.com/crowdqueue/crowdqueue/internal/vote"
	"github.com/crowdqueue/crowdqueue/internal/ws"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/redis"
	"github.com/crowdqueue/crowdqueue/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewMySQL(cfg.MySQL.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	bus := events.NewKafkaBus(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer bus.Close()

	sched := scheduler.New()
	defer sched.Stop()

	sessions := redis.NewSessionStore(redisClient, 0)
	roomCache := redis.NewRoomCache(redisClient)

	roomService := room.NewService(db, bus, roomCache, cfg.Rooms.CodeAttempts)
	queueService := queue.NewService(db, bus)
	voteService := vote.NewService(db, bus)
	presenceService := presence.NewService(db, bus, cfg.Presence.Window, cfg.Presence.Heartbeat)
	reactionService := reaction.NewService(db, bus, sched, cfg.Reactions.MinInterval, cfg.Reactions.TTL)
	searchClient := search.NewClient(cfg.Search.BaseURL, cfg.Search.APIKey)

	hub := ws.NewHub(queueService, presenceService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx, bus)

	authHandler := auth.NewHandler(cfg.JWTSecret, sessions)
	roomHandler := room.NewHandler(roomService)
	queueHandler := queue.NewHandler(queueService)
	voteHandler := vote.NewHandler(voteService)
	presenceHandler := presence.NewHandler(presenceService)
	reactionHandler := reaction.NewHandler(reactionService)
	searchHandler := search.NewHandler(searchClient)
	wsHandler := ws.NewHandler(hub, voteService, reactionService)

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(v1)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.Middleware(cfg.JWTSecret))
	{
		roomHandler.RegisterRoutes(protected)
		queueHandler.RegisterRoutes(protected)
		voteHandler.RegisterRoutes(protected)
		presenceHandler.RegisterRoutes(protected)
		reactionHandler.RegisterRoutes(protected)
		searchHandler.RegisterRoutes(protected)

		protected.GET("/ws/:roomId", wsHandler.HandleWebSocket)
	}

	slog.Info("server starting", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
