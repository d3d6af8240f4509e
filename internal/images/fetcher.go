// Package images downloads processed product images so the operator can
// review them locally before creating the product.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shelfscan/shelfscan/internal/models"
)

// maxImageBytes caps a single download.
const maxImageBytes = 20 << 20

// Fetcher retrieves processed images over HTTP.
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SaveResults downloads every successful result into dir as
// <prefix>_<n>.<ext> and returns the written paths. A failed download is
// logged and skipped; the error is returned only when nothing was saved.
func (f *Fetcher) SaveResults(ctx context.Context, results []models.ProcessedResult, dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if prefix == "" {
		prefix = "processed"
	}

	var saved []string
	var lastErr error
	for i, r := range results {
		if !r.Success || r.OutputURL == "" {
			continue
		}
		base := filepath.Join(dir, fmt.Sprintf("%s_%d", prefix, i+1))
		p, err := f.Download(ctx, r.OutputURL, base)
		if err != nil {
			slog.Warn("Failed to download processed image", "url", r.OutputURL, "error", err)
			lastErr = err
			continue
		}
		slog.Info("Downloaded processed image", "path", p)
		saved = append(saved, p)
	}

	if len(saved) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return saved, nil
}

// Download fetches rawURL to base plus an extension picked from the response
// content type, falling back to the URL's own extension.
func (f *Fetcher) Download(ctx context.Context, rawURL, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image too large (max %d bytes)", maxImageBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	out := base + extension(resp.Header.Get("Content-Type"), rawURL)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return out, nil
}

func extension(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		case "image/jpeg":
			return ".jpg"
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".png"
}
