package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrMiss = errors.New("cache: miss")

// Cache хранит произвольные значения, сериализованные в msgpack.
type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Close() error
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// Memory: in-process кэш. Используется, когда REDIS_ADDR не задан.
type Memory struct {
	mu   sync.Mutex
	m    map[string]memEntry
	now  func() time.Time
	size int
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{m: make(map[string]memEntry), now: time.Now, size: size}
}

func (c *Memory) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return msgpack.Unmarshal(e.data, dst)
}

func (c *Memory) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	e := memEntry{data: b}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && len(c.m) >= c.size {
		c.evictLocked()
	}
	c.m[key] = e
	return nil
}

// evictLocked выкидывает просроченные записи, а если таких нет, то одну произвольную.
func (c *Memory) evictLocked() {
	now := c.now()
	for k, e := range c.m {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.m, k)
		}
	}
	if len(c.m) < c.size {
		return
	}
	for k := range c.m {
		delete(c.m, k)
		return
	}
}

func (c *Memory) Close() error { return nil }
