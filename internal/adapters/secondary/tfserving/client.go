package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const maxErrorBody = 512

// APIError represents a non-2xx reply of the model server.
type APIError struct {
	StatusCode int
	Body       string // error message, or the first 512 bytes of the body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool { return target == domain.ErrPredictFailed }

// Client talks to the REST API of the model server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client for a server listening at baseURL (scheme://host:port).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) PredictURL(modelName string, version int64) string {
	u := c.modelURL(modelName)
	if version > 0 {
		u += "/versions/" + domain.FormatVersion(version)
	}
	return u + ":predict"
}

func (c *Client) modelURL(modelName string) string {
	return c.baseURL + "/v1/models/" + url.PathEscape(modelName)
}

func (c *Client) Predict(ctx context.Context, modelName string, version int64, req *domain.PredictRequest) (*domain.PredictResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PredictURL(modelName, version), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp domain.PredictResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

func (c *Client) ModelStatus(ctx context.Context, modelName string) ([]ports.ModelVersionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(modelName), nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	var resp modelStatusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	out := make([]ports.ModelVersionStatus, 0, len(resp.ModelVersionStatus))
	for _, s := range resp.ModelVersionStatus {
		out = append(out, ports.ModelVersionStatus{
			Version:      s.Version,
			State:        s.State,
			ErrorCode:    s.Status.ErrorCode,
			ErrorMessage: s.Status.ErrorMessage,
		})
	}
	return out, nil
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrServerUnreachable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: errorMessage(body)}
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"url":    req.URL.String(),
		}).Debug("model server returned an error")
		return apiErr
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage prefers the server's {"error": "..."} field over the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return truncate(e.Error, maxErrorBody)
	}
	return truncate(string(body), maxErrorBody)
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Ensure interface compliance
var _ ports.PredictionClient = (*Client)(nil)
