package webstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/session"
)

const (
	keyPrefix = "roleportal:session:"

	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// NewRedisClient parses a Redis URL and returns a connected client
func NewRedisClient(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.PoolSize = 10
	options.MinIdleConns = 2
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	logger.Info().Str("addr", options.Addr).Int("pool_size", options.PoolSize).Msg("Redis client connected")

	return client, nil
}

// RedisBackend keeps sessions server-side in a redis hash keyed by the
// visitor id; the browser only carries the signed visitor cookie
type RedisBackend struct {
	client   *redis.Client
	visitors *Visitors
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewRedisBackend creates a redis-backed session backend. A zero ttl keeps
// sessions until they are cleared.
func NewRedisBackend(client *redis.Client, visitors *Visitors, ttl time.Duration, logger zerolog.Logger) *RedisBackend {
	return &RedisBackend{
		client:   client,
		visitors: visitors,
		ttl:      ttl,
		logger:   logger,
	}
}

func (b *RedisBackend) Name() string {
	return "redis"
}

// Open binds a store to the visitor behind the request
func (b *RedisBackend) Open(w http.ResponseWriter, r *http.Request) session.Store {
	id, err := b.visitors.ID(w, r)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to resolve visitor id")
		return errStore{err: fmt.Errorf("%w: %v", errNoVisitor, err)}
	}
	return b.ForKey(r.Context(), id)
}

// ForKey returns the store for a visitor id
func (b *RedisBackend) ForKey(ctx context.Context, id string) session.Store {
	return &redisStore{ctx: ctx, backend: b, key: keyPrefix + id}
}

type redisStore struct {
	ctx     context.Context
	backend *RedisBackend
	key     string
}

// Write replaces the hash in a single MULTI/EXEC so readers never observe
// a mix of old and new fields
func (s *redisStore) Write(sess session.Session) error {
	values, err := session.ToValues(sess)
	if err != nil {
		return err
	}

	_, err = s.backend.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(s.ctx, s.key)
		pipe.HSet(s.ctx, s.key,
			session.KeyToken, values.Token,
			session.KeyRole, values.Role,
			session.KeyUser, values.User,
		)
		if s.backend.ttl > 0 {
			pipe.Expire(s.ctx, s.key, s.backend.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_session_write_failed: %w", err)
	}
	return nil
}

func (s *redisStore) Read() (session.Session, bool) {
	fields, err := s.backend.client.HGetAll(s.ctx, s.key).Result()
	if err != nil {
		logReadError(s.backend.logger, s.backend.Name(), err)
		return session.Session{}, false
	}

	return session.FromValues(session.Values{
		Token: fields[session.KeyToken],
		Role:  fields[session.KeyRole],
		User:  fields[session.KeyUser],
	})
}

func (s *redisStore) Clear() error {
	if err := s.backend.client.Del(s.ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis_session_delete_failed: %w", err)
	}
	return nil
}
