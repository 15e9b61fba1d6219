package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aulalink/aulalink/internal/httpx/errors"
	"github.com/aulalink/aulalink/internal/observability/logger"
	"github.com/aulalink/aulalink/internal/rate"
)

// WithRateLimit limita requests por IP usando el limiter dado.
// Ante error del limiter (Redis caído) el request PASA: el rate limiting es
// defensa de borde, no un control de autorización, y no puede tirar el login.
func WithRateLimit(l rate.Limiter) Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + "|" + r.URL.Path
			res, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error",
					logger.Component("rate"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				errors.WriteError(w, errors.ErrTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
