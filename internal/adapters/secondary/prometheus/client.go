package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/config"
	ports "serving-optimizer/internal/core/ports/output"
)

type prometheusClient struct {
	baseURL string
	client  *http.Client
	enabled bool
}

// NewPrometheusClient creates a client for the Prometheus HTTP query API
func NewPrometheusClient(cfg *config.PrometheusConfig) ports.PrometheusClient {
	if !cfg.Enabled {
		return &prometheusClient{enabled: false}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &prometheusClient{
		baseURL: cfg.URL,
		enabled: true,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *prometheusClient) IsAvailable() bool {
	if !c.enabled {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/-/healthy", nil)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Prometheus API response structures
type promResponse struct {
	Status string   `json:"status"`
	Error  string   `json:"error,omitempty"`
	Data   promData `json:"data"`
}

type promData struct {
	ResultType string       `json:"resultType"`
	Result     []promResult `json:"result"`
}

type promResult struct {
	Metric map[string]string `json:"metric"`
	Values [][]interface{}   `json:"values"` // [timestamp, value]
	Value  []interface{}     `json:"value"`  // for instant queries
}

func (c *prometheusClient) get(ctx context.Context, path string, params url.Values) (*promResponse, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query prometheus: %w", err)
	}
	defer resp.Body.Close()

	var promResp promResponse
	if err := json.NewDecoder(resp.Body).Decode(&promResp); err != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", err)
	}
	if promResp.Status != "success" {
		return nil, fmt.Errorf("prometheus query failed: %s %s", promResp.Status, promResp.Error)
	}
	return &promResp, nil
}

func (c *prometheusClient) rangeQuery(ctx context.Context, promQL string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	if !c.enabled {
		return nil, nil
	}

	step := tr.Step
	if step <= 0 {
		step = time.Minute
	}
	params := url.Values{}
	params.Set("query", promQL)
	params.Set("start", strconv.FormatInt(tr.Start.Unix(), 10))
	params.Set("end", strconv.FormatInt(tr.End.Unix(), 10))
	params.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))

	resp, err := c.get(ctx, "/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}

	var points []ports.DataPoint
	for _, r := range resp.Data.Result {
		for _, v := range r.Values {
			if p, ok := toDataPoint(v); ok {
				points = append(points, p)
			}
		}
	}
	return points, nil
}

func (c *prometheusClient) instantQuery(ctx context.Context, promQL string) ([]ports.DataPoint, error) {
	if !c.enabled {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", promQL)

	resp, err := c.get(ctx, "/api/v1/query", params)
	if err != nil {
		return nil, err
	}

	var points []ports.DataPoint
	for _, r := range resp.Data.Result {
		if p, ok := toDataPoint(r.Value); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

// toDataPoint decodes a [unix_seconds, "value"] pair
func toDataPoint(v []interface{}) (ports.DataPoint, bool) {
	if len(v) < 2 {
		return ports.DataPoint{}, false
	}
	ts, _ := v[0].(float64)
	valStr, _ := v[1].(string)
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return ports.DataPoint{}, false
	}
	return ports.DataPoint{Timestamp: time.Unix(int64(ts), 0), Value: val}, true
}

// --- KServe revision queries ---

func latencyQuantileQL(q float64, name string) string {
	return fmt.Sprintf(
		`histogram_quantile(%g, sum(rate(revision_request_latencies_bucket{revision_name=~"%s.*"}[5m])) by (le))`,
		q, name)
}

func requestRateQL(name string) string {
	return fmt.Sprintf(`sum(rate(revision_request_count{revision_name=~"%s.*"}[5m]))`, name)
}

func errorRateQL(name string) string {
	return fmt.Sprintf(
		`sum(rate(revision_request_count{revision_name=~"%s.*", response_code!="200"}[5m])) / sum(rate(revision_request_count{revision_name=~"%s.*"}[5m])) * 100`,
		name, name)
}

func (c *prometheusClient) QueryLatencyP50(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return c.rangeQuery(ctx, latencyQuantileQL(0.50, name), tr)
}

func (c *prometheusClient) QueryLatencyP99(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return c.rangeQuery(ctx, latencyQuantileQL(0.99, name), tr)
}

func (c *prometheusClient) QueryRequestRate(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return c.rangeQuery(ctx, requestRateQL(name), tr)
}

func (c *prometheusClient) QueryErrorRate(ctx context.Context, name string, tr ports.TimeRange) ([]ports.DataPoint, error) {
	return c.rangeQuery(ctx, errorRateQL(name), tr)
}

// QueryDeploymentMetrics aggregates the window into single values. Series
// that fail to load are left at zero.
func (c *prometheusClient) QueryDeploymentMetrics(ctx context.Context, name string, tr ports.TimeRange) (*ports.DeploymentMetrics, error) {
	window := tr.End.Sub(tr.Start)
	if window <= 0 {
		window = time.Hour
	}
	requestsQL := fmt.Sprintf(`sum(increase(revision_request_count{revision_name=~"%s.*"}[%ds]))`, name, int64(window.Seconds()))

	metrics := &ports.DeploymentMetrics{DeploymentName: name}

	first := func(promQL string) float64 {
		points, err := c.instantQuery(ctx, promQL)
		if err != nil {
			log.WithError(err).WithField("deployment", name).Debug("prometheus query failed")
			return 0
		}
		if len(points) == 0 {
			return 0
		}
		return points[0].Value
	}

	metrics.Requests = int64(first(requestsQL))
	metrics.LatencyP50 = first(latencyQuantileQL(0.50, name))
	metrics.LatencyP99 = first(latencyQuantileQL(0.99, name))
	metrics.ErrorRate = first(errorRateQL(name))

	return metrics, nil
}

// Ensure interface compliance
var _ ports.PrometheusClient = (*prometheusClient)(nil)
