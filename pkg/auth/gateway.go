package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/ratelimit"
	"chatrelay/pkg/utils"
)

// GatewayConfig drives authentication, CORS and rate limiting behavior.
type GatewayConfig struct {
	JWTSecret      string
	AdminEmail     string
	AllowedOrigins []string
	AllowLocalhost bool
}

// Middleware authenticates every request, resolves the caller's role,
// applies CORS and rate limiting, and injects the Identity into the
// request context. Health probes and signed file URLs pass through
// unauthenticated (the latter carry their own HMAC grant).
func Middleware(cfg GatewayConfig, limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			// cors: echo back only an allowed origin, never the
			// client-supplied value verbatim
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// unauthenticated surfaces
			if isOpenPath(r) {
				if !rateLimit(w, r, limiter, Identity{}) {
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			tok := BearerToken(r)
			if tok == "" {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "reason", "missing_bearer", "path", r.URL.Path)
				return
			}
			claims, err := VerifyToken(cfg.JWTSecret, tok)
			if err != nil {
				// one generic message for malformed, expired and
				// forged tokens alike
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "reason", "invalid_bearer", "path", r.URL.Path, "error", err)
				return
			}
			ident := Identity{
				ID:    claims.UserID,
				Email: claims.Email,
				Role:  ResolveRole(claims.Email, cfg.AdminEmail),
			}

			if !rateLimit(w, r, limiter, ident) {
				return
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path, "role", string(ident.Role))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// RequireAdmin re-verifies the admin role server-side on every call. Never
// trusts a client-asserted role claim: the identity here was resolved from
// the verified token by the gateway on this same request.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if ident.Role != models.RoleAdmin {
			utils.JSONError(w, http.StatusForbidden, "forbidden")
			logger.Warn("admin_route_forbidden", "path", r.URL.Path, "caller", ident.ID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimit(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter, ident Identity) bool {
	if limiter == nil {
		return true
	}
	key := ident.ID
	if key == "" {
		key = ratelimit.CallerKey(r)
	}
	allowed, retryAfter := limiter.Check(key, ClassifyPath(r.URL.Path))
	if allowed {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	utils.JSONErrorDetails(w, http.StatusTooManyRequests, "rate limit exceeded", "retry after "+strconv.Itoa(retryAfter)+"s")
	logger.Warn("rate_limited", "path", r.URL.Path, "caller", key, "retry_after", retryAfter)
	return false
}

// ClassifyPath maps a request path to its rate-limit endpoint class.
// Distinct classes never share quota.
func ClassifyPath(path string) ratelimit.Class {
	switch {
	case strings.HasPrefix(path, "/v1/admin/"):
		return ratelimit.ClassAdmin
	case strings.HasPrefix(path, "/v1/auth/"):
		return ratelimit.ClassAuth
	case strings.HasPrefix(path, "/v1/chat/"),
		strings.HasPrefix(path, "/v1/presence/"),
		strings.HasPrefix(path, "/v1/attachments/"):
		return ratelimit.ClassChat
	case strings.HasPrefix(path, "/v1/webhooks/"):
		return ratelimit.ClassWebhook
	default:
		return ratelimit.ClassPublic
	}
}

func isOpenPath(r *http.Request) bool {
	if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
		return true
	}
	// signed file URLs authorize themselves via the HMAC grant
	return strings.HasPrefix(r.URL.Path, "/v1/files/")
}

func originAllowed(origin string, cfg GatewayConfig) bool {
	for _, a := range cfg.AllowedOrigins {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	if cfg.AllowLocalhost {
		if u, err := url.Parse(origin); err == nil {
			h := u.Hostname()
			if h == "localhost" || h == "127.0.0.1" {
				return true
			}
		}
	}
	return false
}

