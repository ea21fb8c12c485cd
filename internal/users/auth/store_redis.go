// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/counsel/internal/platform/constants"
	"github.com/taibuivan/counsel/internal/platform/dberr"
)

// Session hash fields.
const (
	sessionFieldID        = "id"
	sessionFieldAccountID = "accountid"
	sessionFieldIPAddress = "ipaddress"
	sessionFieldUserAgent = "useragent"
	sessionFieldCreatedAt = "createdat"
	sessionFieldEndedAt   = "endedat"
)

// endSessionScript stamps endedat only on a live key and never recreates an expired one.
var endSessionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HSETNX", KEYS[1], "endedat", ARGV[1])
end
return 0
`)

// RedisSessionRepository implements [SessionRepository] using Redis hashes.
//
// Each session lives at "auth:session:<id>" and expires with the refresh token.
type RedisSessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new Redis-backed SessionRepository.
func NewSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func sessionKey(id string) string {
	return constants.RedisPrefixSession + id
}

/*
Create stores a session hash with its TTL.

Parameters:
  - ctx: context.Context
  - session: *Session
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisSessionRepository) Create(ctx context.Context, session *Session, ttl time.Duration) error {
	key := sessionKey(session.ID)

	// HSET and EXPIRE in one MULTI so a session never lives without a TTL
	_, err := repository.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			sessionFieldID, session.ID,
			sessionFieldAccountID, session.AccountID,
			sessionFieldIPAddress, session.IPAddress,
			sessionFieldUserAgent, session.UserAgent,
			sessionFieldCreatedAt, session.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, "redis_session_create_failed")
	}

	return nil
}

/*
FindByID loads a session hash.

Returns:
  - *Session: The session
  - error: ErrSessionNotFound or connectivity errors
*/
func (repository *RedisSessionRepository) FindByID(ctx context.Context, id string) (*Session, error) {
	fields, err := repository.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, dberr.Wrap(err, "redis_session_get_failed")
	}

	// HGETALL on a missing key is an empty map, not redis.Nil
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	session := &Session{
		ID:        fields[sessionFieldID],
		AccountID: fields[sessionFieldAccountID],
		IPAddress: fields[sessionFieldIPAddress],
		UserAgent: fields[sessionFieldUserAgent],
	}

	if createdAt, parseErr := time.Parse(time.RFC3339Nano, fields[sessionFieldCreatedAt]); parseErr == nil {
		session.CreatedAt = createdAt
	}
	if raw, ok := fields[sessionFieldEndedAt]; ok {
		if endedAt, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			session.EndedAt = &endedAt
		}
	}

	return session, nil
}

// End stamps endedat once. Unknown, expired and already-ended sessions are left alone.
func (repository *RedisSessionRepository) End(ctx context.Context, id string, at time.Time) error {
	err := endSessionScript.Run(ctx, repository.client, []string{sessionKey(id)}, at.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return dberr.Wrap(err, "redis_session_end_failed")
	}
	return nil
}
