package align

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPLoader loads a remote aligner service. The service exposes
// GET /health and POST /align.
type HTTPLoader struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// LoaderOption is a function that configures an HTTPLoader.
type LoaderOption func(*HTTPLoader)

// WithAPIKey sets the bearer key sent with every request.
func WithAPIKey(key string) LoaderOption {
	return func(l *HTTPLoader) {
		l.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *HTTPLoader) {
		l.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) LoaderOption {
	return func(l *HTTPLoader) {
		l.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) LoaderOption {
	return func(l *HTTPLoader) {
		l.baseBackoff = d
	}
}

// NewHTTPLoader creates a loader for the aligner service at baseURL.
func NewHTTPLoader(baseURL string, opts ...LoaderOption) (*HTTPLoader, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	l := &HTTPLoader{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load probes the service health endpoint and returns a model handle bound
// to the model the service reports.
func (l *HTTPLoader) Load(ctx context.Context) (Model, error) {
	var resp healthResponse
	if err := l.doRequestWithRetry(ctx, http.MethodGet, l.baseURL+"/health", nil, &resp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Status, "ok") {
		return nil, fmt.Errorf("%w: status %q", ErrUnhealthy, resp.Status)
	}
	return &httpModel{loader: l, name: resp.Model}, nil
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

type alignRequest struct {
	Text           string    `json:"text"`
	AudioBase64    string    `json:"audio_base64"`
	Segments       []segment `json:"segments"`
	Model          string    `json:"model,omitempty"`
	ReturnPhonemes bool      `json:"return_phonemes"`
}

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type httpModel struct {
	loader *HTTPLoader
	name   string
}

var _ Loader = (*HTTPLoader)(nil)
var _ Model = (*httpModel)(nil)

// Align uploads the clip and returns the service payload unmodified.
func (m *httpModel) Align(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.ClipPath == "" {
		return nil, ErrClipPathRequired
	}
	audio, err := os.ReadFile(req.ClipPath) // #nosec G304 - clip paths come from the run input
	if err != nil {
		return nil, fmt.Errorf("align: read clip: %w", err)
	}

	body, err := json.Marshal(alignRequest{
		Text:           req.Text,
		AudioBase64:    base64.StdEncoding.EncodeToString(audio),
		Segments:       []segment{{Start: 0, End: req.Duration}},
		Model:          m.name,
		ReturnPhonemes: true,
	})
	if err != nil {
		return nil, fmt.Errorf("align: marshal request: %w", err)
	}

	var raw json.RawMessage
	if err := m.loader.doRequestWithRetry(ctx, http.MethodPost, m.loader.baseURL+"/align", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (l *HTTPLoader) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	var lastErr error
	backoff := l.baseBackoff

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("align: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := l.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("align: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (l *HTTPLoader) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("align: create request: %w", err)
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("align: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("align: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("align: unmarshal response: %w", err)
		}
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
