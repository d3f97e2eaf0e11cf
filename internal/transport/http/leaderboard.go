package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dharmateja69/4-in-Row/internal/repository/postgres"
	"github.com/Dharmateja69/4-in-Row/internal/repository/redis"
)

const (
	leaderboardKey = "leaderboard:top"
	leaderboardTTL = 30 * time.Second
	leaderboardMax = 100
)

// LeaderboardHandler serves the standings. The full top list is cached
// as one redis key and sliced per request, so the cache can be dropped
// with a single delete when a game finishes.
type LeaderboardHandler struct {
	Repo  *postgres.Repo
	Cache *redis.Cache
}

func NewLeaderboardHandler(repo *postgres.Repo, cache *redis.Cache) *LeaderboardHandler {
	return &LeaderboardHandler{Repo: repo, Cache: cache}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	if h.Repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "leaderboard unavailable"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > leaderboardMax {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	entries, err := h.topEntries(c)
	if err != nil {
		log.Printf("[HTTP] leaderboard query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *LeaderboardHandler) topEntries(c *gin.Context) ([]postgres.LeaderboardEntry, error) {
	ctx := c.Request.Context()

	if cached, ok := h.Cache.Get(ctx, leaderboardKey); ok {
		var entries []postgres.LeaderboardEntry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			return entries, nil
		}
		h.Cache.Del(ctx, leaderboardKey)
	}

	entries, err := h.Repo.Leaderboard(ctx, leaderboardMax)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []postgres.LeaderboardEntry{}
	}

	if body, err := json.Marshal(entries); err == nil {
		h.Cache.Set(ctx, leaderboardKey, string(body), leaderboardTTL)
	}
	return entries, nil
}

// InvalidateLeaderboard drops the cached standings so fresh tallies are
// visible on the next request.
func InvalidateLeaderboard(cache *redis.Cache) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cache.Del(ctx, leaderboardKey)
}
