// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package background

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"sync"
	"time"

	"newyearcard/internal/cache"
)

const (
	// PoolKey is the KV key holding the pool as a JSON array.
	PoolKey = "new_year_card_backgrounds"

	// PoolCap is the maximum number of remembered backgrounds.
	PoolCap = 20

	// expirySkew treats signed URLs as expired this long before they are.
	expirySkew = 60 * time.Second
)

// Pool remembers recently generated backgrounds, most recent first, so
// later cards can reuse them without another generation call. Storage
// errors are logged and otherwise ignored.
type Pool struct {
	kv  cache.KV
	now func() time.Time

	mu sync.Mutex // guards the read-modify-write of PoolKey
}

// NewPool creates a pool stored in kv.
func NewPool(kv cache.KV) *Pool {
	return &Pool{kv: kv, now: time.Now}
}

// List returns the usable entries. Expired signed URLs and malformed
// entries are dropped, and the stored list is rewritten when anything
// was dropped.
func (p *Pool) List(ctx context.Context) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listLocked(ctx)
}

// Save puts u at the front of the pool. Duplicates and expired signed
// URLs are ignored.
func (p *Pool) Save(ctx context.Context, u string) {
	if u == "" || IsExpiredSignedURL(u, p.now()) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.listLocked(ctx)
	for _, existing := range list {
		if existing == u {
			return
		}
	}

	list = append([]string{u}, list...)
	if len(list) > PoolCap {
		list = list[:PoolCap]
	}
	p.write(ctx, list)
}

// Evict removes u from the pool, e.g. after it failed to load.
func (p *Pool) Evict(ctx context.Context, u string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.listLocked(ctx)
	out := list[:0]
	for _, existing := range list {
		if existing != u {
			out = append(out, existing)
		}
	}
	if len(out) != len(list) {
		p.write(ctx, out)
	}
}

// Random returns a random pool entry, or false when the pool is empty.
func (p *Pool) Random(ctx context.Context) (string, bool) {
	list := p.List(ctx)
	if len(list) == 0 {
		return "", false
	}
	return list[rand.IntN(len(list))], true
}

func (p *Pool) listLocked(ctx context.Context) []string {
	raw, err := p.kv.Get(ctx, PoolKey)
	if errors.Is(err, cache.ErrMiss) {
		return nil
	}
	if err != nil {
		slog.Warn("background pool read failed", "error", err)
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("background pool is corrupt, resetting", "error", err)
		p.write(ctx, nil)
		return nil
	}

	now := p.now()
	list := make([]string, 0, len(entries))
	for _, e := range entries {
		u := normalizeEntry(e)
		if u == "" || IsExpiredSignedURL(u, now) {
			continue
		}
		list = append(list, u)
		if len(list) == PoolCap {
			break
		}
	}

	if len(list) != len(entries) {
		p.write(ctx, list)
	}
	return list
}

func (p *Pool) write(ctx context.Context, list []string) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		slog.Warn("background pool encode failed", "error", err)
		return
	}
	if err := p.kv.Set(ctx, PoolKey, data, 0); err != nil {
		slog.Warn("background pool write failed", "error", err)
	}
}

// normalizeEntry accepts a bare string or an object with a "url" field.
func normalizeEntry(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// IsExpiredSignedURL reports whether u is a signed URL that expires
// within a minute of now. Both the legacy "Expires" (unix seconds) and
// SigV4 "X-Amz-Date"/"X-Amz-Expires" forms are understood. Anything
// that is not a signed URL never expires.
func IsExpiredSignedURL(u string, now time.Time) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	q := parsed.Query()
	deadline := now.Add(expirySkew)

	if v := q.Get("Expires"); v != "" {
		exp, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false
		}
		return !time.Unix(exp, 0).After(deadline)
	}

	date, ttl := q.Get("X-Amz-Date"), q.Get("X-Amz-Expires")
	if date == "" || ttl == "" {
		return false
	}
	signed, err := time.Parse("20060102T150405Z", date)
	if err != nil {
		return false
	}
	secs, err := strconv.ParseInt(ttl, 10, 64)
	if err != nil {
		return false
	}
	return !signed.Add(time.Duration(secs) * time.Second).After(deadline)
}
