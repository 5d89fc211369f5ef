package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/znz-systems/coldpipe/internal/ratelimit"
)

// KeyFunc names the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ByIP charges requests to the client address. Behind a proxy this relies on
// chi's RealIP having rewritten RemoteAddr first.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit rejects a request with 429 when its bucket is empty. Retry-After
// carries the whole seconds until the bucket can serve it.
func RateLimit(limiter *ratelimit.Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.For(key(r)).Reserve()
			if wait := res.Delay(); !res.OK() || wait > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", retryAfter(res.OK(), wait))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(ok bool, wait time.Duration) string {
	if !ok {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(wait.Seconds())))
}
