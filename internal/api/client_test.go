package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, 2*time.Second), srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func tempImage(t *testing.T, name, content string) capture.ImageRef {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	ref, err := capture.NewImageRef(p)
	require.NoError(t, err)
	return ref
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds models.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.com", creds.Email)
		assert.Equal(t, "secret", creds.Password)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"_id": "u1", "username": "Ann", "email": "a@b.com", "role": "seller", "token": "t1",
		})
	})

	resp, err := c.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.Token)
	assert.Equal(t, models.User{ID: "u1", Name: "Ann", Email: "a@b.com", Role: "seller"}, resp.User())
}

func TestLogin_InvalidCredentialsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := c.Login(context.Background(), models.Credentials{Email: "not-an-email"})
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Zero(t, calls.Load())
}

func TestLogin_Rejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})

	_, err := c.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Invalid credentials", se.Message)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Server error: 401 - Invalid credentials", err.Error())
}

func TestLogin_MissingToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"_id": "u1"})
	})
	_, err := c.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "x"})
	require.ErrorContains(t, err, "missing token")
}

func TestDashboard(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/product/dashboard", r.URL.Path)
		assert.Equal(t, "u 1", r.URL.Query().Get("userId"))
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"stats":{"products":4,"images":17,"monthlyGrowth":12.5},
			"monthlyData":{"labels":["Jan","Feb"],"datasets":[{"data":[1,3]}],"legend":["Uploads"]}}`)
	})

	d, err := c.Dashboard(context.Background(), "t1", "u 1")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Stats.Products)
	assert.Equal(t, 17, d.Stats.Images)
	assert.InDelta(t, 12.5, d.Stats.MonthlyGrowth, 0.001)
	require.NotNil(t, d.MonthlyData)
	assert.Equal(t, []string{"Jan", "Feb"}, d.MonthlyData.Labels)
	assert.Equal(t, []float64{1, 3}, d.MonthlyData.Datasets[0].Data)
}

func TestRemoveBackground_Multipart(t *testing.T) {
	imgs := []capture.ImageRef{
		tempImage(t, "front.png", "png-bytes"),
		tempImage(t, "back.jpg", "jpg-bytes"),
		tempImage(t, "side.webp", "webp-bytes"),
	}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/product/remove-background", r.URL.Path)
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File[ImageField]
		require.Len(t, files, 3)
		assert.Equal(t, "front.png", files[0].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))
		assert.Equal(t, "image/jpeg", files[1].Header.Get("Content-Type"))
		assert.Equal(t, "image/webp", files[2].Header.Get("Content-Type"))

		f, err := files[1].Open()
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "jpg-bytes", string(data))

		_, _ = io.WriteString(w, `{"results":[
			{"index":0,"success":true,"data":{"output_image_url":"https://cdn/0.png"}},
			{"index":2,"success":false,"error":"model failed"},
			{"data":{"output_image_url":"https://cdn/x.png"}}
		]}`)
	})

	results, err := c.RemoveBackground(context.Background(), "t1", imgs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, models.ProcessedResult{Index: 0, Success: true, OutputURL: "https://cdn/0.png"}, results[0])
	assert.Equal(t, models.ProcessedResult{Index: 2, Success: false, Error: "model failed"}, results[1])
	assert.Equal(t, models.ProcessedResult{Index: 2, Success: true, OutputURL: "https://cdn/x.png"}, results[2])
}

func TestRemoveBackground_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewClient(srv.URL, time.Second, 50*time.Millisecond)
	_, err := c.RemoveBackground(context.Background(), "t1", []capture.ImageRef{tempImage(t, "a.jpg", "x")})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRemoveBackground_Cancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c := NewClient(srv.URL, time.Second, 5*time.Second)
	_, err := c.RemoveBackground(ctx, "t1", []capture.ImageRef{tempImage(t, "a.jpg", "x")})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, time.Second)
	_, err := c.Dashboard(context.Background(), "t1", "u1")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestUploadProduct(t *testing.T) {
	upload := models.ProductUpload{
		ImageURLs: []string{"https://cdn/1.png", "https://cdn/2.png"},
		ProductID: "4006381333931",
		SKUID:     "4006381333931",
		UserID:    "u1",
		Username:  "Ann",
	}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/product/upload-product-images", r.URL.Path)
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, []any{"https://cdn/1.png", "https://cdn/2.png"}, got["image-urls"])
		assert.Equal(t, "4006381333931", got["productId"])
		assert.Equal(t, "4006381333931", got["skuId"])
		assert.Equal(t, "u1", got["userId"])
		assert.Equal(t, "Ann", got["username"])
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.UploadProduct(context.Background(), "t1", upload))
}

func TestUploadProduct_Duplicate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"conflict", http.StatusConflict, `{"message":"conflict"}`},
		{"message", http.StatusBadRequest, `{"error":"Product already exists"}`},
		{"plain text", http.StatusBadRequest, `duplicate key error`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.UploadProduct(context.Background(), "t1", models.ProductUpload{
				ImageURLs: []string{"u"}, ProductID: "p", SKUID: "p", UserID: "u1",
			})
			assert.True(t, IsDuplicate(err), err)
		})
	}
}

func TestUploadProduct_Validation(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	err := c.UploadProduct(context.Background(), "t1", models.ProductUpload{ProductID: "p", SKUID: "p", UserID: "u"})
	require.ErrorIs(t, err, validation.ErrInvalid)
	assert.Zero(t, calls.Load())
}

func TestIsDuplicate_NonStatus(t *testing.T) {
	assert.False(t, IsDuplicate(errors.New("duplicate")))
	assert.False(t, IsDuplicate(&StatusError{StatusCode: 500, Message: "boom"}))
	assert.Equal(t, "Server error: 500 - Unknown error", (&StatusError{StatusCode: 500}).Error())
}
