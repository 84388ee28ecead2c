package authapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/internal/httpx"
	"github.com/zrdt80/beetrack/cmd/internal/ratelimit"
)

// rateLimited caps requests per client IP on one route.
func (h *Handler) rateLimited(l *ratelimit.Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.Limit() == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := httpx.ClientIPString(r, h.cfg.TrustProxy)
			retryAfter, allowed, err := l.Allow(r.Context(), key)
			if err != nil {
				h.log.Error("auth.ratelimit.fail", zap.Error(err), zap.String("route", route))
				httpx.WriteError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
				return
			}
			if !allowed {
				h.metrics.RateLimited(route)
				writeRateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfterSec int64) {
	if retryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
	}
	httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
