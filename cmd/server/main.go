package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Dharmateja69/4-in-Row/internal/analytics"
	"github.com/Dharmateja69/4-in-Row/internal/config"
	"github.com/Dharmateja69/4-in-Row/internal/repository/postgres"
	"github.com/Dharmateja69/4-in-Row/internal/repository/redis"
	"github.com/Dharmateja69/4-in-Row/internal/service/matchmaking"
	transportHttp "github.com/Dharmateja69/4-in-Row/internal/transport/http"
	"github.com/Dharmateja69/4-in-Row/internal/transport/http/middleware"
	"github.com/Dharmateja69/4-in-Row/internal/transport/websocket"
)

// noopStore keeps the server playable when PostgreSQL is unreachable.
type noopStore struct{}

func (noopStore) UpsertPlayer(context.Context, string) error { return nil }
func (noopStore) CreateGame(context.Context, string, string, string, bool, time.Time) error {
	return nil
}
func (noopStore) RecordMove(context.Context, string, int, string, int, int, time.Time) error {
	return nil
}
func (noopStore) RecordResult(context.Context, string, string, string, string, string, time.Time, time.Time, int) error {
	return nil
}

// cachingStore invalidates the cached leaderboard when a result lands,
// so fresh tallies do not wait out the cache TTL.
type cachingStore struct {
	*postgres.Repo
	cache *redis.Cache
}

func (s *cachingStore) RecordResult(ctx context.Context, gameID, playerX, playerO, winner, reason string, startedAt, finishedAt time.Time, totalMoves int) error {
	err := s.Repo.RecordResult(ctx, gameID, playerX, playerO, winner, reason, startedAt, finishedAt, totalMoves)
	if err == nil {
		transportHttp.InvalidateLeaderboard(s.cache)
	}
	return err
}

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()

	var repo *postgres.Repo
	db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		log.Printf("[DB] warning: running without persistence: %v", err)
	} else {
		defer db.Close()
		repo = postgres.NewRepo(db, cfg.BotName)
	}

	cache := redis.Connect(cfg.RedisURL, cfg.RedisPassword)
	defer cache.Close()

	events := analytics.Disabled()
	if cfg.KafkaEnabled {
		publisher, err := analytics.NewPublisher(cfg.KafkaBrokers, cfg.KafkaClientID, cfg.KafkaTopic)
		if err != nil {
			log.Printf("[KAFKA] warning: running without analytics: %v", err)
		} else {
			events = publisher
			defer publisher.Close()
		}
	}

	connManager := websocket.NewConnectionManager()

	var store matchmaking.Store = noopStore{}
	if repo != nil {
		store = &cachingStore{Repo: repo, cache: cache}
	}

	matches := matchmaking.NewOrchestrator(matchmaking.Config{
		RejoinTimeout: cfg.RejoinTimeout,
		MatchWait:     cfg.MatchWait,
		BotDepth:      cfg.BotDepth,
		BotBudget:     cfg.BotBudget,
		BotThink:      cfg.BotThink,
		BotName:       cfg.BotName,
	}, connManager, store, events)

	wsHandler := websocket.NewHandler(connManager, matches, cfg.Heartbeat)
	leaderboardHandler := transportHttp.NewLeaderboardHandler(repo, cache)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	healthz := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"activeGames": matches.ActiveGames(),
			"connections": connManager.Count(),
		})
	}
	router.GET("/health", healthz)
	router.GET("/healthz", healthz)
	router.GET("/api/leaderboard", leaderboardHandler.GetLeaderboard)
	router.GET("/ws", gin.WrapF(wsHandler.HandleWebSocket))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
