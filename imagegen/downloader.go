// downloader.go implements the Downloader molecule that fetches image bytes
// from the temporary URLs some providers return instead of inline data.
package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"text2image/core"
)

// DefaultMaxDownloadBytes caps a single image download.
const DefaultMaxDownloadBytes = 32 << 20

// Downloader fetches generated images over HTTP.
//
// Thread Safety: Downloader is safe for concurrent use.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is used for downloads. If nil, a client with Timeout is built.
	HTTPClient *http.Client

	// Timeout for download operations
	// Default: 60 seconds
	Timeout time.Duration

	// MaxBytes limits the response body size
	// Default: DefaultMaxDownloadBytes
	MaxBytes int64
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:  60 * time.Second,
		MaxBytes: DefaultMaxDownloadBytes,
	}
}

// NewDownloader creates a downloader that honours the TLS settings of cfg.
func NewDownloader(cfg DownloaderConfig, coreCfg *core.Config) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxDownloadBytes
	}

	client := cfg.HTTPClient
	if client == nil {
		client = core.GetHTTPClient(coreCfg, cfg.Timeout)
	}

	return &Downloader{client: client, maxBytes: cfg.MaxBytes}
}

// DownloadBytes downloads url and returns the body and its Content-Type.
// Non-image content types and bodies larger than the configured limit are
// rejected.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isImageContentType(contentType) {
		return nil, "", fmt.Errorf("imagegen: unexpected content type %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", fmt.Errorf("imagegen: image exceeds %d bytes", d.maxBytes)
	}

	return data, contentType, nil
}

func isImageContentType(contentType string) bool {
	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	return strings.HasPrefix(strings.TrimSpace(lower), "image/")
}
