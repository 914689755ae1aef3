package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/ctxkeys"
	"github.com/DuyAnh662/Fileshare/internal/identity"
	"github.com/DuyAnh662/Fileshare/internal/service"
)

// RateLimiter keeps a sliding window of request times per key.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop to
// end the loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow records a request for key and reports whether it fits the window.
// The second value is how long until the oldest request leaves the window.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := slices.DeleteFunc(rl.requests[key], func(t time.Time) bool {
		return !t.After(cutoff)
	})

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false, recent[0].Sub(cutoff)
	}

	rl.requests[key] = append(recent, now)
	return true, 0
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops keys whose newest request is older than the window.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, requests := range rl.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

// RateLimit limits requests per device, or per client IP before a device
// cookie exists.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ctxkeys.DeviceID(r.Context())
			if key == "" {
				key = "ip:" + identity.ClientIP(r)
			}

			ok, wait := limiter.Allow(key)
			if !ok {
				slog.Warn("rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
				)
				seconds := int(wait.Seconds()) + 1
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.WriteHeader(http.StatusTooManyRequests)
				res := service.Failure[any](service.ReasonRateLimited, "")
				res.RetryAfter = seconds
				_ = json.NewEncoder(w).Encode(res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
