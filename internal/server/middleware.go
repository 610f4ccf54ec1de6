package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
)

// rateWindow is the window of the request limiter.
const rateWindow = time.Minute

// kvTimeout bounds a single counter round trip.
const kvTimeout = 2 * time.Second

// requestLogger logs one line per request with its chi request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// RateLimit allows limit requests per client IP per minute using httprate's
// sliding window. Counters live in the KV store, so several server processes
// sharing a KV backend enforce one limit; without a store httprate keeps them in
// process memory. A non-positive limit disables limiting.
func RateLimit(kv contract.KVStore, limit int, metrics *Metrics) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if metrics != nil {
				metrics.rateLimited.Inc()
			}
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	}
	if kv != nil {
		opts = append(opts, httprate.WithLimitCounter(&kvCounter{kv: kv}))
	}
	return httprate.Limit(limit, rateWindow, opts...)
}

// kvCounter implements httprate.LimitCounter over a contract.KVStore. Store
// failures are logged and the request is let through.
type kvCounter struct {
	kv     contract.KVStore
	window time.Duration
}

var _ httprate.LimitCounter = (*kvCounter)(nil)

func (c *kvCounter) Config(_ int, windowLength time.Duration) {
	c.window = windowLength
}

func (c *kvCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *kvCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), kvTimeout)
	defer cancel()
	// the previous window is still read for the sliding estimate
	ttl := 2 * c.window
	k := c.key(key, currentWindow)
	for range amount {
		if _, err := c.kv.Incr(ctx, k, ttl); err != nil {
			logging.Err(err).Str("key", k).Msg("rate limiter unavailable")
			return nil
		}
	}
	return nil
}

func (c *kvCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), kvTimeout)
	defer cancel()
	return c.count(ctx, c.key(key, currentWindow)), c.count(ctx, c.key(key, previousWindow)), nil
}

func (c *kvCounter) count(ctx context.Context, key string) int {
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		logging.Err(err).Str("key", key).Msg("rate limiter unavailable")
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

func (c *kvCounter) key(client string, window time.Time) string {
	return "ratelimit:" + client + ":" + strconv.FormatInt(window.Unix(), 10)
}

// liveSlotTTL bounds how long a crashed process can hold live slots.
const liveSlotTTL = 10 * time.Minute

// LiveThrottle caps concurrent live connections per client across processes.
// It implements live.Gate.
type LiveThrottle struct {
	kv    contract.KVStore
	limit int
}

// NewLiveThrottle allows limit concurrent live connections per client. A
// non-positive limit or a nil store disables the cap.
func NewLiveThrottle(kv contract.KVStore, limit int) *LiveThrottle {
	return &LiveThrottle{kv: kv, limit: limit}
}

// Acquire takes a live slot for the requesting client. The returned release
// function must be called once the connection closes.
func (t *LiveThrottle) Acquire(r *http.Request) (func(), bool) {
	if t.kv == nil || t.limit <= 0 {
		return func() {}, true
	}
	key := "live:conns:" + clientIP(r)
	n, err := t.kv.Incr(r.Context(), key, liveSlotTTL)
	if err != nil {
		logging.Err(err).Msg("live throttle unavailable")
		return func() {}, true
	}
	release := func() { t.release(key) }
	if n > int64(t.limit) {
		release()
		return nil, false
	}
	return release, true
}

func (t *LiveThrottle) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), kvTimeout)
	defer cancel()
	n, err := t.kv.Decr(ctx, key)
	if err != nil {
		logging.Err(err).Msg("live throttle release failed")
		return
	}
	if n <= 0 {
		_ = t.kv.Delete(ctx, key)
	}
}

// clientIP strips the port from the remote address. chi's RealIP middleware has
// already applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
