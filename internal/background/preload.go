package background

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"newyearcard/internal/cache"
	"newyearcard/internal/imagestore"
)

// DefaultPreloadTimeout bounds each candidate check.
const DefaultPreloadTimeout = 4500 * time.Millisecond

// verifiedTTL is how long a successful remote check is remembered.
const verifiedTTL = 10 * time.Minute

// Preloader picks the first loadable background out of a prioritized
// candidate list.
type Preloader struct {
	client   *http.Client // public addresses only, unless replaced
	guarded  bool         // client enforces the address policy
	trusted  *http.Client // hosts in trust
	trust    map[string]bool
	store    *imagestore.Store // may be nil
	verified cache.KV          // may be nil
	timeout  time.Duration
}

// NewPreloader creates a preloader. store resolves /images/ URLs and
// verified remembers remote URLs that loaded recently; both are optional.
// Remote checks never reach private, loopback or link-local addresses
// unless the host is trusted.
func NewPreloader(store *imagestore.Store, verified cache.KV) *Preloader {
	return &Preloader{
		client:   publicClient(),
		guarded:  true,
		trusted:  &http.Client{},
		trust:    map[string]bool{},
		store:    store,
		verified: verified,
		timeout:  DefaultPreloadTimeout,
	}
}

// Trust lets URLs on the given hosts (host or host:port, as in a URL) be
// checked without the address restrictions. Used for the object storage
// that generated backgrounds are uploaded to.
func (p *Preloader) Trust(hosts ...string) *Preloader {
	for _, h := range hosts {
		if h != "" {
			p.trust[strings.ToLower(h)] = true
		}
	}
	return p
}

// WithClient replaces the HTTP client used for untrusted hosts, together
// with its address policy.
func (p *Preloader) WithClient(c *http.Client) *Preloader {
	p.client = c
	p.guarded = false
	return p
}

// Choice is the outcome of Pick.
type Choice struct {
	URL string
	// Failed lists the candidates that were tried and did not load. A
	// candidate cut off by ctx is included.
	Failed []string
}

// First returns the first candidate that loads, trying them in order with
// a fixed per-candidate timeout. fallback is returned when none loads.
func (p *Preloader) First(ctx context.Context, candidates []string, fallback string) string {
	return p.Pick(ctx, candidates, fallback).URL
}

// Pick is First that also reports which candidates failed.
func (p *Preloader) Pick(ctx context.Context, candidates []string, fallback string) Choice {
	var failed []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := p.check(ctx, c); err != nil {
			failed = append(failed, c)
			if ctx.Err() != nil {
				break
			}
			slog.Debug("background candidate failed", "url", truncate(c, 80), "error", err)
			continue
		}
		return Choice{URL: c, Failed: failed}
	}
	return Choice{URL: fallback, Failed: failed}
}

// Check reports whether u can be loaded.
func (p *Preloader) Check(ctx context.Context, u string) error {
	return p.check(ctx, u)
}

func (p *Preloader) check(ctx context.Context, u string) error {
	if strings.HasPrefix(u, "data:") {
		return nil
	}

	if name, ok := imagestore.NameFromURL(u); ok {
		if p.store != nil && p.store.Exists(name) {
			return nil
		}
		return fmt.Errorf("preload: %s not in image store", name)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	client := p.trusted
	if !p.trust[strings.ToLower(parsed.Host)] {
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("preload: unsupported scheme %q", parsed.Scheme)
		}
		if p.guarded {
			if err := checkURL(parsed); err != nil {
				return err
			}
		}
		client = p.client
	}

	key := "preload:" + u
	if p.verified != nil {
		if _, err := p.verified.Get(ctx, key); err == nil {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("preload request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("preload http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("preload: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("preload: content type %q", ct)
	}

	if p.verified != nil {
		_ = p.verified.Set(ctx, key, []byte{1}, verifiedTTL)
	}
	return nil
}

// truncate shortens s to at most n runes for log lines.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
