package server

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// APIKeyHeader is the credential header non-browser clients present
const APIKeyHeader = "X-API-Key"

// authenticator validates requests by credential header or session cookie
type authenticator struct {
	apiKeys  []string
	sessions *SessionStore
}

// validAPIKey compares the presented key against the configured set in
// constant time.
func (a *authenticator) validAPIKey(key string) bool {
	if key == "" {
		return false
	}
	for _, known := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(known), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// sessionToken extracts a live session token from the request cookie, if any
func (a *authenticator) sessionToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	if !a.sessions.Validate(cookie.Value) {
		return "", false
	}
	return cookie.Value, true
}

// requireAuth accepts either a valid API key header or a session cookie
func (a *authenticator) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.validAPIKey(r.Header.Get(APIKeyHeader)) {
			next(w, r)
			return
		}
		if _, ok := a.sessionToken(r); ok {
			next(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
	}
}

// requireAPIKey accepts only the credential header; used for session minting
func (a *authenticator) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.validAPIKey(r.Header.Get(APIKeyHeader)) {
			writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
			return
		}
		next(w, r)
	}
}

// submitLimiter throttles job submissions per credential
type submitLimiter struct {
	mu        sync.Mutex
	perMinute int
	limiters  map[string]*rate.Limiter
}

func newSubmitLimiter(perMinute int) *submitLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &submitLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// allow reports whether the caller identified by key may submit now
func (l *submitLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// limitSubmissions rejects submissions beyond the per-caller rate
func (l *submitLimiter) limitSubmissions(a *authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			if token, ok := a.sessionToken(r); ok {
				key = token
			}
		}
		if !l.allow(key) {
			writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded")
			return
		}
		next(w, r)
	}
}
