package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wawbook/config"
	"wawbook/personalize"
)

// PageCache keeps rendered page rasters keyed by book, page and the
// personalization hash, so identical requests skip the engine. A nil cache
// is valid and does nothing.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewPageCache connects to the configured server. A disabled configuration
// yields nil.
func NewPageCache(ctx context.Context, cfg *config.CacheConfig, log *zap.Logger) (*PageCache, error) {
	if !cfg.Enable {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: string(cfg.Password),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to page cache: %w", err)
	}
	return &PageCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSec) * time.Second,
		log:    log.Named("cache"),
	}, nil
}

func (c *PageCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Get returns the cached raster or nil on miss. Cache errors degrade to a
// miss, never fail the render.
func (c *PageCache) Get(ctx context.Context, bookID string, page int, pctx *personalize.Context) []byte {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, pageKey(bookID, page, pctx)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("Page cache read failed", zap.Error(err))
		}
		return nil
	}
	return data
}

func (c *PageCache) Put(ctx context.Context, bookID string, page int, pctx *personalize.Context, data []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, pageKey(bookID, page, pctx), data, c.ttl).Err(); err != nil {
		c.log.Warn("Page cache write failed", zap.Error(err))
	}
}

func pageKey(bookID string, page int, pctx *personalize.Context) string {
	return fmt.Sprintf("page:%s:%d:%s", bookID, page, contextHash(pctx))
}

// contextHash is a stable digest of the personalization request.
func contextHash(pctx *personalize.Context) string {
	data, err := marshalContext(pctx)
	if err != nil {
		return "unhashable"
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:8])
}
