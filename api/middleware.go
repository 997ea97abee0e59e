package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// TokenAuth requires the static bearer token, taken from the Authorization
// header or, for links opened directly in a browser, the token query
// parameter. Repeated failures from one client IP are throttled.
func (a *API) TokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := a.extractClientIP(r)
		if blocked, retryAfter := a.limiter.check(ip); blocked {
			a.audit.logFailure(AuditAuthRateLimited, r, "too many bad tokens", slog.String("client_ip", ip))
			writeRateLimited(w, retryAfter)
			return
		}

		candidate := bearerToken(r)
		if candidate == "" {
			a.limiter.recordFailure(ip)
			a.audit.logFailure(AuditAuthFailure, r, "missing token", slog.String("client_ip", ip))
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !a.tokenMatches(candidate) {
			a.limiter.recordFailure(ip)
			a.audit.logFailure(AuditAuthFailure, r, "invalid token", slog.String("client_ip", ip))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		a.limiter.recordSuccess(ip)
		next.ServeHTTP(w, r)
	})
}

func (a *API) tokenMatches(candidate string) bool {
	buf, err := a.token.Open()
	if err != nil {
		a.logger.Error("opening token enclave", slog.Any("error", err))
		return false
	}
	defer buf.Destroy()
	return subtle.ConstantTimeCompare(buf.Bytes(), []byte(candidate)) == 1
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
