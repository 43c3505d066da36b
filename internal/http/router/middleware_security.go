package router

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"golang.org/x/time/rate"

	"github.com/motorlot/marketplace-api/internal/auth"
)

const (
	ipLimiterCapacity = 50_000
	defaultActionRate = 30
)

type ipBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter is the coarse per-address token bucket in front of the whole
// API. Idle buckets are swept once the table grows past its capacity.
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	every   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func newRequestRateLimiter(rps float64, burst int, idle time.Duration) *ipRateLimiter {
	rps = max(rps, 1)
	if burst <= 0 {
		burst = max(int(rps), 1)
	}
	if idle <= 0 {
		idle = time.Minute
	}
	return &ipRateLimiter{
		buckets: make(map[string]*ipBucket),
		every:   rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many requests, please retry shortly")
	})
}

func (l *ipRateLimiter) allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) >= ipLimiterCapacity {
		for key, bucket := range l.buckets {
			if now.Sub(bucket.lastSeen) > l.idle {
				delete(l.buckets, key)
			}
		}
	}

	bucket := l.buckets[ip]
	if bucket == nil {
		bucket = &ipBucket{tokens: rate.NewLimiter(l.every, l.burst)}
		l.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.tokens.AllowN(now, 1)
}

// clientIP strips the port from RemoteAddr, which middleware.RealIP has
// already rewritten from forwarding headers.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

// actionRateLimit caps lifecycle action submissions per authenticated user
// so one account cannot hammer moderation endpoints from many addresses.
func actionRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = defaultActionRate
	}
	byUser := httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			return "user:" + identity.UserID, nil
		}
		return "ip:" + clientIP(r), nil
	})
	onLimit := httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusTooManyRequests, "too many listing actions, please retry shortly")
	})
	return httprate.Limit(perMinute, time.Minute, byUser, onLimit)
}

// securityHeaders sets the API's response hardening headers. HSTS and the
// HTTPS checks only apply in production.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		IsDevelopment:         !production,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "camera=(), geolocation=(), microphone=()",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:            int64((365 * 24 * time.Hour).Seconds()),
		STSIncludeSubdomains:  true,
	}).Handler
}
