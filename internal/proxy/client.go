package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// forwardedHeaders are the only request headers passed to the model server
var forwardedHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}

// Client forwards raw requests to the REST API of the model server.
type Client struct {
	httpClient  *http.Client
	upstreamURL string
}

func NewClient(upstreamURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		upstreamURL: strings.TrimRight(upstreamURL, "/"),
	}
}

// Forward proxies a request to the model server and returns the response.
// The caller closes the response body.
func (c *Client) Forward(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	url := c.upstreamURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}

	for _, key := range forwardedHeaders {
		for _, v := range headers.Values(key) {
			req.Header.Add(key, v)
		}
	}

	log.WithFields(log.Fields{
		"method": method,
		"url":    url,
	}).Debug("forwarding request to model server")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	return resp, nil
}
