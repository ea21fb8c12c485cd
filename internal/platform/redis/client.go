// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides the managed client behind the login session store.

Each session is a small hash that expires together with the refresh token
issued at the same login. Two properties matter for that workload:

  - Writes are tiny and latency-sensitive, so the pool is small and
    timeouts are short.
  - Sessions live only as TTL keys. A server whose eviction policy targets
    TTL keys (volatile-*) or any key (allkeys-*) may drop audit records
    early under memory pressure; the client warns about that at startup.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/counsel/internal/platform/constants"
)

// Client settings for the session workload.
const (
	poolSize     = 10
	minIdleConns = 2
	maxIdleConns = 5
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// ParseOptions turns redisURL into tuned client options without connecting.
func ParseOptions(redisURL string) (*redis.Options, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if options.ClientName == "" {
		options.ClientName = constants.AppName
	}
	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.MaxIdleConns = maxIdleConns
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	// Request deadlines cut session writes short instead of the fixed timeouts alone.
	options.ContextTimeoutEnabled = true

	return options, nil
}

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)

	warnOnEviction(context, client, logger)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis_ping_failed: %w", err)
	}

	return nil
}

// EvictsSessions reports whether maxmemory-policy may evict session keys.
func EvictsSessions(policy string) bool {
	return strings.HasPrefix(policy, "volatile-") || strings.HasPrefix(policy, "allkeys-")
}

// warnOnEviction logs when the server may evict sessions. Managed servers
// often forbid CONFIG GET; that case is logged at debug and ignored.
func warnOnEviction(context stdctx.Context, client *redis.Client, logger *slog.Logger) {
	configCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	values, err := client.ConfigGet(configCtx, "maxmemory-policy").Result()
	if err != nil {
		logger.Debug("redis_eviction_policy_unknown", slog.Any("error", err))
		return
	}

	if policy := values["maxmemory-policy"]; EvictsSessions(policy) {
		logger.Warn("redis_eviction_may_drop_sessions", slog.String("maxmemory_policy", policy))
	}
}
