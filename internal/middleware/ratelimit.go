// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// limiterEntry tracks request timestamps for a single client.
type limiterEntry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter provides per-IP rate limiting using a sliding window. Idle
// clients expire from the underlying cache after one window.
type RateLimiter struct {
	mu      sync.Mutex // guards entry creation
	clients *gocache.Cache
	limit   int           // max requests per window
	window  time.Duration // sliding window duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter that allows limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	cleanup := window
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &RateLimiter{
		clients: gocache.New(window, cleanup),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// allow checks whether the given key is within the rate limit.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	entry := rl.entry(key)
	now := rl.now()
	cutoff := now.Add(-rl.window)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Remove expired timestamps.
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= rl.limit {
		return false, entry.timestamps[0].Sub(cutoff)
	}

	entry.timestamps = append(entry.timestamps, now)
	// Keep the entry alive for one window past the latest request.
	rl.clients.Set(key, entry, rl.window)
	return true, 0
}

func (rl *RateLimiter) entry(key string) *limiterEntry {
	if v, ok := rl.clients.Get(key); ok {
		return v.(*limiterEntry)
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.clients.Get(key); ok {
		return v.(*limiterEntry)
	}
	e := &limiterEntry{}
	rl.clients.Set(key, e, rl.window)
	return e
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.clients.ItemCount()
}

// Middleware returns an HTTP middleware that rate-limits by client IP.
// chi's RealIP middleware is expected to have resolved RemoteAddr.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := rl.allow(clientIP(r))
		if !ok {
			secs := int(retry.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many requests, please try again later"}`))
				return
			}
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
