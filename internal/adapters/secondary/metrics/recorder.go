package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const namespace = "serving_optimizer"

// Recorder exports pipeline, predict and benchmark measurements on its own
// registry.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	requestLatency  *prometheus.HistogramVec
	requestFailures *prometheus.CounterVec
	benchLatency    *prometheus.GaugeVec
	benchThroughput *prometheus.GaugeVec
	benchAccuracy   *prometheus.GaugeVec
	artifactSize    *prometheus.GaugeVec
}

// NewRecorder registers all collectors plus the Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"model", "stage", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "latency_seconds",
			Help:      "Wall-clock latency of predict requests issued by benchmarks",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"model"}),
		requestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "failures_total",
			Help:      "Predict requests that returned an error",
		}, []string{"model"}),
		benchLatency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "latency_seconds",
			Help:      "Latency quantiles of the last benchmark per model",
		}, []string{"model", "quantile"}),
		benchThroughput: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "throughput_rps",
			Help:      "Requests per second of the last benchmark per model",
		}, []string{"model"}),
		benchAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "accuracy_ratio",
			Help:      "Accuracy of the last labelled benchmark per model",
		}, []string{"model"}),
		artifactSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "artifact_size_bytes",
			Help:      "Size of the latest artifact of each kind",
		}, []string{"model", "kind"}),
	}
}

func (r *Recorder) ObserveStage(modelName string, stage domain.StageName, status domain.StageStatus, d time.Duration) {
	r.stageDuration.WithLabelValues(modelName, string(stage), string(status)).Observe(d.Seconds())
}

func (r *Recorder) ObserveRequest(modelName string, d time.Duration, success bool) {
	if !success {
		r.requestFailures.WithLabelValues(modelName).Inc()
		return
	}
	r.requestLatency.WithLabelValues(modelName).Observe(d.Seconds())
}

func (r *Recorder) ObserveBenchmark(result *domain.BenchmarkResult) {
	m := result.ModelName
	r.benchLatency.WithLabelValues(m, "0.5").Set(result.Latency.P50.Seconds())
	r.benchLatency.WithLabelValues(m, "0.95").Set(result.Latency.P95.Seconds())
	r.benchLatency.WithLabelValues(m, "0.99").Set(result.Latency.P99.Seconds())
	r.benchLatency.WithLabelValues(m, "mean").Set(result.Latency.Mean.Seconds())
	r.benchThroughput.WithLabelValues(m).Set(result.Throughput())
	if result.Accuracy != nil {
		r.benchAccuracy.WithLabelValues(m).Set(*result.Accuracy)
	}
}

func (r *Recorder) ObserveArtifactSize(modelName string, kind domain.ArtifactKind, bytes int64) {
	r.artifactSize.WithLabelValues(modelName, string(kind)).Set(float64(bytes))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Nop discards every observation
type Nop struct{}

func (Nop) ObserveStage(string, domain.StageName, domain.StageStatus, time.Duration) {}
func (Nop) ObserveRequest(string, time.Duration, bool)                               {}
func (Nop) ObserveBenchmark(*domain.BenchmarkResult)                                 {}
func (Nop) ObserveArtifactSize(string, domain.ArtifactKind, int64)                   {}

// Ensure interface compliance
var (
	_ ports.MetricsRecorder = (*Recorder)(nil)
	_ ports.MetricsRecorder = Nop{}
)
