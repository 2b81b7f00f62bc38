package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Middleware decorates a Backend with a cross-cutting concern.
type Middleware func(Backend) Backend

// Wrap applies middlewares in left-to-right order:
// Wrap(inner, A, B) => A(B(inner)).
func Wrap(inner Backend, mws ...Middleware) Backend {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate limiting --------

// WithRateLimit throttles calls to rps requests per second. rps <= 0
// disables the limiter.
func WithRateLimit(rps float64, burst int) Middleware {
	return func(next Backend) Backend {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		return &rateLimited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Backend
	lim  *rate.Limiter
}

func (b *rateLimited) Name() string { return b.next.Name() }

func (b *rateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if err := b.lim.Wait(ctx); err != nil {
		return "", classify(ctx, err)
	}
	return b.next.Generate(ctx, req)
}

func (b *rateLimited) Remember(req Request, response string) {
	if r, ok := b.next.(Rememberer); ok {
		r.Remember(req, response)
	}
}

// -------- Response cache --------

// WithResponseCache replays responses for identical requests. Only responses
// passed to Remember are stored, so a reply the caller rejected is never
// served again. size <= 0 disables caching.
func WithResponseCache(size int) Middleware {
	return func(next Backend) Backend {
		if size <= 0 {
			return next
		}
		cache, err := lru.New[string, string](size)
		if err != nil {
			return next
		}
		return &CachedBackend{next: next, cache: cache}
	}
}

// CachedBackend is the Backend returned by WithResponseCache.
type CachedBackend struct {
	next  Backend
	cache *lru.Cache[string, string]
}

func (b *CachedBackend) Name() string { return b.next.Name() }

func (b *CachedBackend) Generate(ctx context.Context, req Request) (string, error) {
	if text, ok := b.cache.Get(cacheKey(b.next.Name(), req)); ok {
		return text, nil
	}
	return b.next.Generate(ctx, req)
}

func (b *CachedBackend) Remember(req Request, response string) {
	b.cache.Add(cacheKey(b.next.Name(), req), response)
	if r, ok := b.next.(Rememberer); ok {
		r.Remember(req, response)
	}
}

// Len reports the number of cached responses.
func (b *CachedBackend) Len() int { return b.cache.Len() }

func cacheKey(backend string, req Request) string {
	data, _ := json.Marshal(struct {
		Backend string
		Request
	}{backend, req})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Describe renders the decorator chain for logs.
func Describe(b Backend) string {
	switch v := b.(type) {
	case *rateLimited:
		return fmt.Sprintf("ratelimit(%g/s)->%s", float64(v.lim.Limit()), Describe(v.next))
	case *CachedBackend:
		return "cache->" + Describe(v.next)
	}
	return b.Name()
}
