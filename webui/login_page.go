// Package webui provides the browser front end for the image generator.
// This file contains the login page rendering functionality.
package webui

import (
	"html/template"
	"io"
	"net/http"
)

// loginPageHTML is the login page template. CSS is inline so the page
// renders before any session exists.
const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Text to Image - Sign in</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #111827;
            color: #f3f4f6;
        }
        .card {
            background: #1f2937;
            border-radius: 12px;
            padding: 40px;
            width: 100%;
            max-width: 360px;
        }
        h1 { font-size: 22px; margin-bottom: 24px; text-align: center; }
        form { display: flex; flex-direction: column; gap: 16px; }
        label { font-size: 13px; color: #d1d5db; }
        input {
            padding: 10px 12px;
            font-size: 15px;
            border: 1px solid #374151;
            border-radius: 6px;
            background: #111827;
            color: inherit;
        }
        button {
            padding: 10px;
            border: none;
            border-radius: 6px;
            background: #3b82f6;
            color: white;
            font-weight: 600;
            cursor: pointer;
        }
        .error {
            padding: 10px;
            font-size: 13px;
            color: #fca5a5;
            background: rgba(239, 68, 68, 0.15);
            border: 1px solid rgba(239, 68, 68, 0.4);
            border-radius: 6px;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="card">
        <h1>Text to Image</h1>
        <form method="POST" action="/login">
            {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
            <label for="password">Password</label>
            <input type="password" id="password" name="password" required autofocus>
            <button type="submit">Sign in</button>
        </form>
    </div>
</body>
</html>`

// LoginPageData holds the data passed to the login page template.
type LoginPageData struct {
	// Error contains an error message to display, empty if no error
	Error string
}

var loginTemplate = template.Must(template.New("login").Parse(loginPageHTML))

// RenderLoginPage writes the login page HTML to w.
func RenderLoginPage(w io.Writer, data LoginPageData) error {
	return loginTemplate.Execute(w, data)
}

// HandleLoginPage renders the login page, showing the "error" query
// parameter set by a failed attempt.
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

	data := LoginPageData{Error: r.URL.Query().Get("error")}
	if err := RenderLoginPage(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
