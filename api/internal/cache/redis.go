package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"waste-bot/api/internal/config"
)

type Redis struct {
	Client *redis.Client
	Prefix string
}

// NewRedisClient подключается и пингует; ошибка значит, что работаем без redis.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is empty")
	}
	cl := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cl.Ping(pctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cl, nil
}

func NewRedis(cl *redis.Client, prefix string) *Redis {
	return &Redis{Client: cl, Prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string, dst any) error {
	b, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, dst)
}

func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, r.Prefix+key, b, ttl).Err()
}

func (r *Redis) Close() error { return r.Client.Close() }
