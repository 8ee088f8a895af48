package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

// Client caches search responses. The snapshot changes only on an
// explicit pipeline run, so short TTLs keep the cache honest without
// any invalidation protocol.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetSearch(ctx context.Context, queryHash string) (*models.SearchResult, error) {
	data, err := c.client.Get(ctx, searchKey(queryHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search cache: %w", err)
	}

	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	logger.Debug("Search cache hit", zap.String("query_hash", queryHash))
	return &result, nil
}

func (c *Client) SetSearch(ctx context.Context, queryHash string, result models.SearchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, searchKey(queryHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set search cache: %w", err)
	}

	return nil
}

// Flush drops all cached search responses, used after a snapshot
// rebuild while entries may still reflect the old data.
func (c *Client) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "search:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Search cache flushed")
	return nil
}

func searchKey(hash string) string {
	return fmt.Sprintf("search:%s", hash)
}
