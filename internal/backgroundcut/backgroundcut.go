// Package backgroundcut removes image backgrounds through backgroundcut.co,
// one request per image.
package backgroundcut

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shelfscan/shelfscan/internal/api"
	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
)

const (
	DefaultURL     = "https://backgroundcut.co/api/v1/cut/"
	DefaultTimeout = 30 * time.Second
)

// ErrNoAPIKey is returned when the remover is used without a key.
var ErrNoAPIKey = errors.New("backgroundcut API key not set")

// Remover is a providers.Remover backed by backgroundcut.co. Images are sent
// sequentially; a failed image becomes a failed result instead of aborting
// the batch.
type Remover struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	httpClient *http.Client
	logger     *slog.Logger
}

// New returns a Remover for the given endpoint and key. An empty url uses
// DefaultURL.
func New(url, apiKey string, timeout time.Duration) *Remover {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remover{
		URL:        url,
		APIKey:     apiKey,
		Timeout:    timeout,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

func (r *Remover) WithLogger(l *slog.Logger) *Remover {
	r.logger = l
	return r
}

// RemoveBackground ignores token: backgroundcut authenticates with its own
// API key. It fails only when no image could be processed, returning the
// first image's error.
func (r *Remover) RemoveBackground(ctx context.Context, _ string, images []capture.ImageRef) ([]models.ProcessedResult, error) {
	if r.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to process")
	}

	results := make([]models.ProcessedResult, 0, len(images))
	var firstErr error
	succeeded := 0

	for i, img := range images {
		r.logger.Info("Processing image", "n", i+1, "of", len(images), "file", img.FileName())

		outURL, err := r.cut(ctx, img)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			r.logger.Warn("Background removal failed", "file", img.FileName(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
			results = append(results, models.ProcessedResult{Index: i, Error: err.Error()})
			continue
		}
		succeeded++
		results = append(results, models.ProcessedResult{Index: i, Success: true, OutputURL: outURL})
	}

	if succeeded == 0 {
		return nil, firstErr
	}
	return results, nil
}

func (r *Remover) cut(ctx context.Context, img capture.ImageRef) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := api.AddImagePart(mw, "file", img); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Token "+r.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", api.WrapTransport(ctx, "backgroundcut", err)
	}
	defer resp.Body.Close()

	if err := api.CheckResponse(resp); err != nil {
		return "", err
	}

	var out struct {
		OutputImageURL string `json:"output_image_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if strings.TrimSpace(out.OutputImageURL) == "" {
		return "", fmt.Errorf("no output image returned from backgroundcut")
	}
	return out.OutputImageURL, nil
}
