package align

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "01_Stewie.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFfake"), 0o600))
	return path
}

func TestNewHTTPLoader_MissingURL(t *testing.T) {
	_, err := NewHTTPLoader("")
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestHTTPLoader_LoadAndAlign(t *testing.T) {
	clipPath := writeClip(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/health":
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"status":"ok","model":"wav2vec2-base"}`))
		case "/align":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req alignRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Hello, world.", req.Text)
			assert.Equal(t, "wav2vec2-base", req.Model)
			assert.True(t, req.ReturnPhonemes)
			assert.Equal(t, []segment{{Start: 0, End: 1.5}}, req.Segments)
			audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
			assert.NoError(t, err)
			assert.Equal(t, "RIFFfake", string(audio))

			_, _ = w.Write([]byte(twoWords))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader, err := NewHTTPLoader(server.URL+"/", WithAPIKey("secret"))
	require.NoError(t, err)

	s := NewSession(loader, nil)
	res := s.Align(context.Background(), "Hello, world", clipAt(clipPath))
	require.Equal(t, StatusAligned, res.Status, res.Reason)
	assert.Equal(t, "hello", res.Words[0].Word)
}

func TestHTTPLoader_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"loading"}`))
	}))
	defer server.Close()

	loader, err := NewHTTPLoader(server.URL)
	require.NoError(t, err)

	_, err = loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnhealthy)
}

func TestHTTPLoader_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	loader, err := NewHTTPLoader(server.URL, WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPLoader_RetryLimits(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{name: "server error exhausts retries", status: http.StatusInternalServerError, wantErr: ErrServerError, wantCalls: 3},
		{name: "rate limit exhausts retries", status: http.StatusTooManyRequests, wantErr: ErrRateLimited, wantCalls: 3},
		{name: "client error is not retried", status: http.StatusUnauthorized, wantErr: ErrRequestFailed, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			loader, err := NewHTTPLoader(server.URL,
				WithMaxRetries(2),
				WithBaseBackoff(time.Millisecond),
				WithHTTPClient(server.Client()),
			)
			require.NoError(t, err)

			_, err = loader.Load(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestHTTPLoader_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	loader, err := NewHTTPLoader(server.URL, WithBaseBackoff(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = loader.Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPModel_MissingClip(t *testing.T) {
	loader, err := NewHTTPLoader("http://127.0.0.1:1")
	require.NoError(t, err)
	m := &httpModel{loader: loader}

	_, err = m.Align(context.Background(), Request{Text: "hi"})
	assert.ErrorIs(t, err, ErrClipPathRequired)

	_, err = m.Align(context.Background(), Request{Text: "hi", ClipPath: filepath.Join(t.TempDir(), "nope.wav")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
