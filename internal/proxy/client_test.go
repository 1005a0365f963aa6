package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/mnist:predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"instances":[[1]]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[3]}`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Request-ID", "req-1")
	headers.Set("Authorization", "Bearer secret")

	c := NewClient(srv.URL+"/", time.Second)
	resp, err := c.Forward(context.Background(), http.MethodPost, "/v1/models/mnist:predict",
		strings.NewReader(`{"instances":[[1]]}`), headers)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"predictions":[3]}`, string(body))
}

func TestForward_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Forward(context.Background(), http.MethodGet, "/v1/models/mnist", nil, http.Header{})
	assert.Error(t, err)
}
