// Package static provides embedded static assets for the web UI.
package static

import (
	"embed"
	"io/fs"
)

// StaticFS contains all embedded static assets for the web UI:
// - index.html (generator page)
// - css/app.css
// - js/app.js (form handling and progress socket)
//
//go:embed index.html css js
var StaticFS embed.FS

// GetFS returns the embedded filesystem.
func GetFS() fs.FS {
	return StaticFS
}

// ReadFile reads a file from the embedded filesystem.
func ReadFile(name string) ([]byte, error) {
	return StaticFS.ReadFile(name)
}
