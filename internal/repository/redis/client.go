package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InitRedis connects to addr. It returns nil, nil when Redis is not configured or
// unreachable so callers can fall back to process-local locking.
func InitRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		log.Info().Str("component", "redis").Msg("REDIS_URL not set, using in-memory locks")
		return nil, nil
	}

	var opts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	if password != "" {
		opts.Password = password
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Str("component", "redis").Err(err).Msg("could not connect, falling back to in-memory locks")
		client.Close()
		return nil, nil
	}

	log.Info().Str("component", "redis").Str("addr", opts.Addr).Msg("connected")
	return client, nil
}
