package auth

import (
	"errors"
	"net/http"
	"time"
)

const (
	// SessionCookieName is the cookie carrying the session ID.
	SessionCookieName = "t2i_session"

	// DefaultCookiePath scopes the cookie to the whole UI.
	DefaultCookiePath = "/"
)

var (
	// ErrNoCookie is returned when the request has no session cookie.
	ErrNoCookie = errors.New("cookie not found")

	// ErrEmptySessionID is returned when building a cookie for "".
	ErrEmptySessionID = errors.New("session ID cannot be empty")
)

// CookieConfig holds the attributes of the session cookie.
type CookieConfig struct {
	Name     string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
}

// DefaultCookieConfig returns an HttpOnly, SameSite=Strict cookie config
// living as long as DefaultSessionTTL.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     SessionCookieName,
		MaxAge:   DurationToSeconds(DefaultSessionTTL),
		HTTPOnly: true,
		SameSite: http.SameSiteStrictMode,
		Path:     DefaultCookiePath,
	}
}

// NewSessionCookie builds the cookie for sessionID.
func NewSessionCookie(sessionID string, cfg CookieConfig) (*http.Cookie, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	name := cfg.Name
	if name == "" {
		name = SessionCookieName
	}
	path := cfg.Path
	if path == "" {
		path = DefaultCookiePath
	}

	return &http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     path,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}, nil
}

// ParseSessionCookie returns the session ID carried by r.
func ParseSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrNoCookie
	}
	if cookie.Value == "" {
		return "", ErrEmptySessionID
	}
	return cookie.Value, nil
}

// ClearSessionCookie returns a cookie that deletes the session cookie.
func ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     DefaultCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// DurationToSeconds converts a TTL to a cookie Max-Age.
func DurationToSeconds(d time.Duration) int {
	return int(d.Seconds())
}
