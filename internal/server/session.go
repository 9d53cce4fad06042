package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

// SessionCookieName is the opaque cookie browser clients present on the
// progress stream after authenticating once.
const SessionCookieName = "sweep_session"

// session tracks one authenticated browser session and its live streams
type session struct {
	mu      sync.Mutex
	streams int
}

// SessionStore issues opaque session tokens and enforces the per-session
// concurrent stream cap.
type SessionStore struct {
	cache      *gocache.Cache
	ttl        time.Duration
	maxStreams int
}

// NewSessionStore creates a store whose sessions expire after ttl
func NewSessionStore(ttl time.Duration, maxStreams int) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxStreams <= 0 {
		maxStreams = 3
	}
	return &SessionStore{
		cache:      gocache.New(ttl, ttl/2),
		ttl:        ttl,
		maxStreams: maxStreams,
	}
}

// Create mints a new opaque session token
func (s *SessionStore) Create() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)
	s.cache.Set(token, &session{}, gocache.DefaultExpiration)
	return token, nil
}

// Validate reports whether the token names a live session
func (s *SessionStore) Validate(token string) bool {
	_, ok := s.cache.Get(token)
	return ok
}

// TTL returns the session lifetime, used to set the cookie max age
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// AcquireStream reserves one concurrent stream slot for the session. The
// returned release func must be called when the stream ends. Exceeding the
// cap is rejected, not queued.
func (s *SessionStore) AcquireStream(token string) (func(), error) {
	value, ok := s.cache.Get(token)
	if !ok {
		return nil, models.ErrNotFound
	}
	sess := value.(*session)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.streams >= s.maxStreams {
		return nil, fmt.Errorf("%w: limit %d", models.ErrTooManyStreams, s.maxStreams)
	}
	sess.streams++

	var once sync.Once
	release := func() {
		once.Do(func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			if sess.streams > 0 {
				sess.streams--
			}
		})
	}
	return release, nil
}
