// This file contains the auth middleware organism that composes the
// session, rate limiting, and password molecules.
package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"text2image/webui"

	"go.uber.org/zap"
)

// Default configuration for the auth middleware.
const (
	DefaultRateLimitAttempts      = 5
	DefaultRateLimitWindowMinutes = 1
	DefaultRateLimitBlockMinutes  = 5
	DefaultSessionTTL             = 24 * time.Hour
	DefaultFailedLoginDelay       = time.Second
)

// AuthMiddleware gates the web UI behind a single shared password.
//
// Organism composition:
//   - bcrypt hash (password.go) for credential verification
//   - webui.SessionStore for session management
//   - webui.RateLimiter for brute force protection
type AuthMiddleware struct {
	passwordHash     string
	sessions         *webui.SessionStore
	rateLimiter      *webui.RateLimiter
	logger           *zap.Logger
	cookieConfig     CookieConfig
	failedLoginDelay time.Duration
}

var _ webui.AuthProvider = (*AuthMiddleware)(nil)

// Config holds configuration options for the AuthMiddleware.
type Config struct {
	// SessionTTL is how long sessions remain valid (default: 24 hours)
	SessionTTL time.Duration

	// RateLimitAttempts is failed attempts before blocking (default: 5)
	RateLimitAttempts int

	// RateLimitWindowMinutes is the window for counting attempts (default: 1)
	RateLimitWindowMinutes int

	// RateLimitBlockMinutes is how long to block after max attempts (default: 5)
	RateLimitBlockMinutes int

	// SecureCookies sets the Secure flag on cookies (true behind HTTPS)
	SecureCookies bool

	// BcryptCost is the hashing cost (default: DefaultCost)
	BcryptCost int

	// FailedLoginDelay slows down wrong guesses (default: 1s, negative disables)
	FailedLoginDelay time.Duration
}

// DefaultConfig returns a Config with the defaults above.
func DefaultConfig() Config {
	return Config{
		SessionTTL:             DefaultSessionTTL,
		RateLimitAttempts:      DefaultRateLimitAttempts,
		RateLimitWindowMinutes: DefaultRateLimitWindowMinutes,
		RateLimitBlockMinutes:  DefaultRateLimitBlockMinutes,
		BcryptCost:             DefaultCost,
		FailedLoginDelay:       DefaultFailedLoginDelay,
	}
}

// NewAuthMiddleware creates an AuthMiddleware with DefaultConfig.
func NewAuthMiddleware(password string, logger *zap.Logger) (*AuthMiddleware, error) {
	return NewAuthMiddlewareWithConfig(password, logger, DefaultConfig())
}

// NewAuthMiddlewareWithConfig hashes password and builds the session
// store and rate limiter. Zero config fields take their defaults.
func NewAuthMiddlewareWithConfig(password string, logger *zap.Logger, cfg Config) (*AuthMiddleware, error) {
	defaults := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.RateLimitAttempts <= 0 {
		cfg.RateLimitAttempts = defaults.RateLimitAttempts
	}
	if cfg.RateLimitWindowMinutes <= 0 {
		cfg.RateLimitWindowMinutes = defaults.RateLimitWindowMinutes
	}
	if cfg.RateLimitBlockMinutes <= 0 {
		cfg.RateLimitBlockMinutes = defaults.RateLimitBlockMinutes
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	if cfg.FailedLoginDelay == 0 {
		cfg.FailedLoginDelay = defaults.FailedLoginDelay
	}
	if cfg.FailedLoginDelay < 0 {
		cfg.FailedLoginDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hash, err := HashPasswordWithCost(password, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	cookieConfig := DefaultCookieConfig()
	cookieConfig.Secure = cfg.SecureCookies
	cookieConfig.MaxAge = DurationToSeconds(cfg.SessionTTL)

	return &AuthMiddleware{
		passwordHash:     hash,
		sessions:         webui.NewSessionStore(cfg.SessionTTL),
		rateLimiter:      webui.NewRateLimiter(cfg.RateLimitAttempts, cfg.RateLimitWindowMinutes, cfg.RateLimitBlockMinutes),
		logger:           logger,
		cookieConfig:     cookieConfig,
		failedLoginDelay: cfg.FailedLoginDelay,
	}, nil
}

// Middleware rejects requests without a valid session. API and websocket
// callers get a JSON 401; page requests are redirected to the login page.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.IsAuthenticated(r) {
			m.logger.Debug("unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("ip", webui.ClientIP(r)),
			)
			if isAPIPath(r.URL.Path) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required","code":"unauthorized"}`))
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MiddlewareFunc is Middleware for a HandlerFunc.
func (m *AuthMiddleware) MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return m.Middleware(next).ServeHTTP
}

// IsAuthenticated reports whether r carries a live session cookie.
func (m *AuthMiddleware) IsAuthenticated(r *http.Request) bool {
	sessionID, err := ParseSessionCookie(r)
	if err != nil {
		return false
	}
	_, err = m.sessions.Get(sessionID)
	return err == nil
}

// LoginHandler serves GET and POST /login.
func (m *AuthMiddleware) LoginHandler() http.HandlerFunc {
	return LoginHandler(m)
}

// LogoutHandler serves /logout.
func (m *AuthMiddleware) LogoutHandler() http.HandlerFunc {
	return LogoutHandler(m)
}

// CheckRateLimit writes a 429 with Retry-After and returns false when ip
// is blocked.
func (m *AuthMiddleware) CheckRateLimit(w http.ResponseWriter, ip string) bool {
	allowed, remaining := m.rateLimiter.Allow(ip)
	if allowed {
		return true
	}
	m.logger.Warn("rate limit exceeded",
		zap.String("ip", ip),
		zap.Duration("remaining", remaining),
	)
	w.Header().Set("Retry-After", formatRetryAfter(remaining))
	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	return false
}

// RecordFailedAttempt counts a failed login from ip.
func (m *AuthMiddleware) RecordFailedAttempt(ip string) {
	m.rateLimiter.RecordAttempt(ip)
	m.logger.Info("failed authentication attempt recorded",
		zap.String("ip", ip),
		zap.Int("attempts", m.rateLimiter.GetAttemptCount(ip)),
	)
}

// VerifyPassword checks password against the configured hash.
func (m *AuthMiddleware) VerifyPassword(password string) error {
	return VerifyPassword(password, m.passwordHash)
}

// CreateSession starts a session and returns the cookie to set.
func (m *AuthMiddleware) CreateSession() (webui.Session, *http.Cookie, error) {
	session, err := m.sessions.Create()
	if err != nil {
		m.logger.Error("failed to create session", zap.Error(err))
		return webui.Session{}, nil, err
	}

	cookie, err := NewSessionCookie(session.ID, m.cookieConfig)
	if err != nil {
		return webui.Session{}, nil, err
	}

	m.logger.Info("session created",
		zap.String("session_id", truncateSessionID(session.ID)),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, cookie, nil
}

// DestroySession removes a session.
func (m *AuthMiddleware) DestroySession(sessionID string) {
	m.sessions.Delete(sessionID)
}

// SessionStore exposes the store so callers can run its cleanup ticker.
func (m *AuthMiddleware) SessionStore() *webui.SessionStore {
	return m.sessions
}

// RateLimiter exposes the limiter so callers can run its cleanup ticker.
func (m *AuthMiddleware) RateLimiter() *webui.RateLimiter {
	return m.rateLimiter
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/ws"
}

func formatRetryAfter(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func truncateSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID + "..."
	}
	return sessionID[:8] + "..."
}
