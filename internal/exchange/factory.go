package exchange

import (
	"context"
	"strings"
)

// NewStore picks postgres when databaseURL is set, redis when redisURL is set,
// and falls back to process memory.
func NewStore(ctx context.Context, databaseURL, redisURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(redisURL) != "" {
		return NewRedisStore(ctx, redisURL)
	}
	return NewInMemoryStore(), nil
}
