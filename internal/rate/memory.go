package rate

import (
	"context"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por clave: Max requests de burst que se reponen a lo
// largo de Window. Los buckets sin uso expiran a las dos ventanas.
type MemoryLimiter struct {
	Max    int
	Window time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	buckets *gocache.Cache
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 1
	}
	return &MemoryLimiter{
		Max:     max,
		Window:  window,
		Now:     time.Now,
		buckets: gocache.New(2*window, 2*window),
	}
}

func (l *MemoryLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(l.Window/time.Duration(l.Max)), l.Max)
	l.buckets.SetDefault(key, lim)
	return lim
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.Now()
	lim := l.bucket(key)
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	res := Result{Allowed: allowed, Remaining: int64(math.Max(0, math.Floor(tokens)))}
	// tiempo hasta que el bucket vuelve a estar lleno
	res.WindowTTL = seconds((float64(l.Max) - tokens) / float64(lim.Limit()))
	if !allowed {
		res.RetryAfter = seconds((1 - tokens) / float64(lim.Limit()))
		if res.RetryAfter < time.Second {
			res.RetryAfter = time.Second
		}
	}
	return res, nil
}

// seconds redondea hacia arriba a segundos enteros (Retry-After no acepta fracciones).
func seconds(s float64) time.Duration {
	return time.Duration(math.Ceil(s-1e-9)) * time.Second
}
