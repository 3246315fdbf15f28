package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey separa límites por endpoint (sign-in vs send-code) sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// RateObserver cuenta los rechazos.
type RateObserver interface {
	RateLimited(path string)
}

type RateLimitConfig struct {
	Limiter  rate.Limiter
	KeyFunc  RateKeyFunc
	Observer RateObserver
}

// WithRateLimit rechaza con RATE_LIMITED (429) cuando se agota la ventana. Si el limiter
// falla el request pasa.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Component("rate"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if cfg.Observer != nil {
					cfg.Observer.RateLimited(r.URL.Path)
				}
				httperrors.WriteError(w, autherr.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
