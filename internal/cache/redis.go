package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-powboard/internal/domain"
)

const keyPrefix = "powboard:post:"

// Redis is a PostCache backed by a Redis server. Values are JSON encoded
// posts stored with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects lazily to addr.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{client: rdb, ttl: ttl}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Get(ctx context.Context, txID string) (*domain.Post, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+txID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("tx_id", txID).Msg("cache.get")
		}
		return nil, false
	}
	var p domain.Post
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Str("tx_id", txID).Msg("cache.decode")
		return nil, false
	}
	p.Difficulty = 0
	return &p, true
}

func (r *Redis) Set(ctx context.Context, p *domain.Post) {
	if p == nil || p.TxID == "" {
		return
	}
	raw, err := json.Marshal(clone(p))
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+p.TxID, raw, r.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("tx_id", p.TxID).Msg("cache.set")
	}
}

func (r *Redis) Invalidate(ctx context.Context, txIDs ...string) {
	if len(txIDs) == 0 {
		return
	}
	keys := make([]string, len(txIDs))
	for i, id := range txIDs {
		keys[i] = keyPrefix + id
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("tx_ids", txIDs).Msg("cache.invalidate")
	}
}
