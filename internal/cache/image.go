// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// image.go caches rendered card PNGs. /card-image is deterministic for a
// given name, poem, wish and theme, so identical requests skip the draw.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	// imageKeyPrefix is the key prefix for cached card images.
	imageKeyPrefix = "cardimg:"

	// DefaultImageTTL is how long a rendered card image stays cached.
	DefaultImageTTL = 10 * time.Minute
)

// ImageCache stores rendered PNG bytes in a KV.
type ImageCache struct {
	kv  KV
	ttl time.Duration
}

// NewImageCache creates an image cache backed by kv.
func NewImageCache(kv KV, ttl time.Duration) *ImageCache {
	if ttl == 0 {
		ttl = DefaultImageTTL
	}
	return &ImageCache{kv: kv, ttl: ttl}
}

// Get returns cached PNG bytes for key. Errors other than a miss are
// logged and reported as a miss.
func (ic *ImageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := ic.kv.Get(ctx, imageKeyPrefix+key)
	if errors.Is(err, ErrMiss) {
		return nil, false
	}
	if err != nil {
		slog.Warn("image cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("image cache hit", "key", key)
	return val, true
}

// Set stores PNG bytes for key with the configured TTL.
func (ic *ImageCache) Set(ctx context.Context, key string, png []byte) {
	if err := ic.kv.Set(ctx, imageKeyPrefix+key, png, ic.ttl); err != nil {
		slog.Warn("image cache set error", "key", key, "error", err)
	}
}

// Invalidate removes one cached image.
func (ic *ImageCache) Invalidate(ctx context.Context, key string) {
	if err := ic.kv.Del(ctx, imageKeyPrefix+key); err != nil {
		slog.Warn("image cache invalidate error", "key", key, "error", err)
	}
}

// ImageKey derives a stable cache key from the parts that determine the
// rendered output.
func ImageKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}
