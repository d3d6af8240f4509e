// Package api is the HTTP client for the product-catalog backend: login,
// dashboard, bulk background removal and product creation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/validation"
)

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultRemovalTimeout = 30 * time.Second

	// ImageField is the multipart field every image part is sent under.
	ImageField = "productImages"
)

// Client talks to the catalog backend.
type Client struct {
	BaseURL        string
	RequestTimeout time.Duration
	RemovalTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewClient creates a backend client. Zero timeouts fall back to the defaults.
func NewClient(baseURL string, requestTimeout, removalTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if removalTimeout <= 0 {
		removalTimeout = DefaultRemovalTimeout
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		RequestTimeout: requestTimeout,
		RemovalTimeout: removalTimeout,
		httpClient:     &http.Client{},
		logger:         slog.Default(),
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.logger = l
	return c
}

// Login exchanges credentials for the user profile and bearer token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	var out models.LoginResponse
	if err := c.doJSON(ctx, c.RequestTimeout, http.MethodPost, "/api/auth/login", "", creds, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login response missing token")
	}
	if out.User().ID == "" {
		return nil, fmt.Errorf("login response missing user id")
	}
	return &out, nil
}

// Dashboard fetches the upload summary for userID.
func (c *Client) Dashboard(ctx context.Context, token, userID string) (*models.Dashboard, error) {
	path := "/api/product/dashboard?userId=" + url.QueryEscape(userID)

	var out models.Dashboard
	if err := c.doJSON(ctx, c.RequestTimeout, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadProduct creates a catalog product from processed image URLs.
func (c *Client) UploadProduct(ctx context.Context, token string, upload models.ProductUpload) error {
	if err := validation.Struct(upload); err != nil {
		return err
	}
	return c.doJSON(ctx, c.RequestTimeout, http.MethodPost, "/api/product/upload-product-images", token, upload, nil)
}

type removalResponse struct {
	Results []struct {
		Index   *int            `json:"index"`
		Success *bool           `json:"success"`
		Error   json.RawMessage `json:"error"`
		Data    struct {
			OutputImageURL string `json:"output_image_url"`
		} `json:"data"`
	} `json:"results"`
}

// RemoveBackground sends every image as one multipart request and returns one
// result per entry the service reported.
func (c *Client) RemoveBackground(ctx context.Context, token string, images []capture.ImageRef) ([]models.ProcessedResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to process")
	}

	body, contentType, err := multipartImages(images)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Submitting images for background removal", "count", len(images), "bytes", body.Len())

	var resp removalResponse
	if err := c.do(ctx, c.RemovalTimeout, http.MethodPost, "/api/product/remove-background", token, contentType, body, &resp); err != nil {
		return nil, err
	}

	results := make([]models.ProcessedResult, 0, len(resp.Results))
	for i, r := range resp.Results {
		pr := models.ProcessedResult{
			Index:     i,
			OutputURL: r.Data.OutputImageURL,
			Error:     rawMessageText(r.Error),
		}
		if r.Index != nil {
			pr.Index = *r.Index
		}
		if r.Success != nil {
			pr.Success = *r.Success
		} else {
			pr.Success = pr.OutputURL != "" && pr.Error == ""
		}
		results = append(results, pr)
	}
	return results, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartImages(images []capture.ImageRef) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, img := range images {
		if err := AddImagePart(mw, ImageField, img); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// AddImagePart writes img as a file part under field, with the image's own
// content type rather than application/octet-stream.
func AddImagePart(mw *multipart.Writer, field string, img capture.ImageRef) error {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return fmt.Errorf("failed to read image %s: %w", img.Path, err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(img.FileName())))
	h.Set("Content-Type", img.ContentType())

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write multipart part: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, timeout time.Duration, method, path, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, timeout, method, path, token, contentType, body, out)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path, token, contentType string, body io.Reader, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	op := method + " " + strings.SplitN(path, "?", 2)[0]
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", "op", op, "err", err, "elapsed", time.Since(start))
		return WrapTransport(ctx, op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Request completed", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if err := CheckResponse(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if reqCtx.Err() != nil {
			return WrapTransport(ctx, op, reqCtx.Err())
		}
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// CheckResponse returns a *StatusError for any non-2xx reply.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
}

// errorMessage pulls a human message out of an error body, which the backend
// sends as {"message": ...} or {"error": ...} and proxies sometimes as text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if msg := rawMessageText(body.Error); msg != "" {
			return msg
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func rawMessageText(raw json.RawMessage) string {
	switch string(raw) {
	case "", "null", "false":
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
