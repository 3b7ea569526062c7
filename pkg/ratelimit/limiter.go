package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatrelay/pkg/logger"
)

// Class is an endpoint class with its own quota. Distinct classes never
// share quota.
type Class string

const (
	ClassAdmin   Class = "admin"
	ClassAuth    Class = "auth"
	ClassPublic  Class = "public"
	ClassChat    Class = "chat"
	ClassWebhook Class = "webhook"
)

var defaultCeilings = map[Class]int{
	ClassAdmin:   30,
	ClassAuth:    10,
	ClassPublic:  20,
	ClassChat:    60,
	ClassWebhook: 100,
}

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatrelay_rate_limited_total",
	Help: "Requests rejected by the fixed-window rate limiter.",
}, []string{"class"})

// Store counts hits per key within a fixed window. Incr returns the hit
// count for the current window and the time remaining until the window
// resets. State is a best-effort abuse deterrent, not a security boundary;
// the in-memory implementation resets on process restart.
type Store interface {
	Incr(key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// Limiter applies fixed-window ceilings per (endpoint class, caller) key.
type Limiter struct {
	store    Store
	window   time.Duration
	ceilings map[Class]int
}

// New builds a limiter over the given store. Zero ceilings fall back to the
// defaults; a zero window defaults to one minute.
func New(store Store, window time.Duration, overrides map[Class]int) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	ceilings := make(map[Class]int, len(defaultCeilings))
	for c, n := range defaultCeilings {
		ceilings[c] = n
	}
	for c, n := range overrides {
		if n > 0 {
			ceilings[c] = n
		}
	}
	return &Limiter{store: store, window: window, ceilings: ceilings}
}

// Check records one hit and reports whether the caller is within quota.
// When rejected, retryAfter holds the whole seconds until the window
// resets (at least 1).
func (l *Limiter) Check(callerKey string, class Class) (allowed bool, retryAfter int) {
	ceiling, ok := l.ceilings[class]
	if !ok {
		ceiling = defaultCeilings[ClassPublic]
	}
	count, ttl, err := l.store.Incr(string(class)+":"+callerKey, l.window)
	if err != nil {
		// Store outage must not take the API down with it.
		logger.Warn("rate_limit_store_error", "error", err)
		return true, 0
	}
	if count <= ceiling {
		return true, 0
	}
	secs := int(ttl.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	rejections.WithLabelValues(string(class)).Inc()
	return false, secs
}

// CallerKey derives the caller identifier for unauthenticated requests
// from the most trustworthy forwarded-address header available, falling
// back to the shared "unknown" bucket. Unidentifiable callers are
// throttled in aggregate rather than not at all.
func CallerKey(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		if first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0]); first != "" {
			return first
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "unknown"
}
