package auth

import (
	"net/http"

	"text2image/webui"

	"go.uber.org/zap"
)

// LogoutHandler destroys the caller's session and returns them to the
// login page. GET and POST are accepted.
func LogoutHandler(m *AuthMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if sessionID, err := ParseSessionCookie(r); err == nil {
			m.DestroySession(sessionID)
			m.logger.Info("logout: session destroyed",
				zap.String("session_id", truncateSessionID(sessionID)),
				zap.String("ip", webui.ClientIP(r)),
			)
		}

		http.SetCookie(w, ClearSessionCookie())

		code := http.StatusFound
		if r.Method == http.MethodPost {
			code = http.StatusSeeOther
		}
		http.Redirect(w, r, LoginPath, code)
	}
}
