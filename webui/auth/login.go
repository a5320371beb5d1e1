package auth

import (
	"net/http"
	"net/url"
	"time"

	"text2image/webui"

	"go.uber.org/zap"
)

const (
	// SuccessRedirect is where a successful login lands.
	SuccessRedirect = "/"

	// LoginPath is the login page route.
	LoginPath = "/login"
)

// LoginHandler renders the login form on GET and checks the password on POST.
func LoginHandler(m *AuthMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleLoginGET(w, r, m)
		case http.MethodPost:
			handleLoginPOST(w, r, m)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleLoginGET(w http.ResponseWriter, r *http.Request, m *AuthMiddleware) {
	if m.IsAuthenticated(r) {
		http.Redirect(w, r, SuccessRedirect, http.StatusFound)
		return
	}
	webui.HandleLoginPage(w, r)
}

func handleLoginPOST(w http.ResponseWriter, r *http.Request, m *AuthMiddleware) {
	clientIP := webui.ClientIP(r)

	if !m.CheckRateLimit(w, clientIP) {
		return
	}

	if err := r.ParseForm(); err != nil {
		m.logger.Debug("login: failed to parse form", zap.String("ip", clientIP), zap.Error(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		m.delayFailure()
		redirectWithError(w, r, "Password is required")
		return
	}

	if err := m.VerifyPassword(password); err != nil {
		m.RecordFailedAttempt(clientIP)
		m.delayFailure()
		redirectWithError(w, r, "Invalid password")
		return
	}

	_, cookie, err := m.CreateSession()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.rateLimiter.Reset(clientIP)
	http.SetCookie(w, cookie)

	m.logger.Info("login succeeded", zap.String("ip", clientIP))
	http.Redirect(w, r, SuccessRedirect, http.StatusSeeOther)
}

func (m *AuthMiddleware) delayFailure() {
	if m.failedLoginDelay > 0 {
		time.Sleep(m.failedLoginDelay)
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, errMsg string) {
	http.Redirect(w, r, LoginPath+"?error="+url.QueryEscape(errMsg), http.StatusSeeOther)
}
