// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by KV.Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// KV is the minimal byte-oriented key/value store shared by card sessions,
// the background pool and the export share links. A ttl of zero means the
// entry never expires.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ValkeyKV stores entries in Valkey.
type ValkeyKV struct {
	client *redis.Client
}

// NewValkeyKV wraps a connected Valkey client.
func NewValkeyKV(client *redis.Client) *ValkeyKV {
	return &ValkeyKV{client: client}
}

func (v *ValkeyKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := v.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return val, nil
}

func (v *ValkeyKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := v.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

func (v *ValkeyKV) Del(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

// MemoryKV is an in-process KV used when no Valkey server is configured.
// Entries do not survive a restart.
type MemoryKV struct {
	c *gocache.Cache
}

// NewMemoryKV creates an in-process store that sweeps expired entries
// every cleanup interval.
func NewMemoryKV(cleanup time.Duration) *MemoryKV {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryKV{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("memory get %s: unexpected type %T", key, v)
	}
	// Callers may mutate what they get back.
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.c.Set(key, stored, ttl)
	return nil
}

func (m *MemoryKV) Del(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
