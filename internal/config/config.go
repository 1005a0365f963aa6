package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	Layout     LayoutConfig
	Tools      ToolsConfig
	Serving    ServingConfig
	Benchmark  BenchmarkConfig
	Kubernetes KubernetesConfig
	Prometheus PrometheusConfig
	Metrics    MetricsConfig
	GCS        GCSConfig
	Tracing    TracingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// StoreConfig is the embedded store used when no database is configured
type StoreConfig struct {
	Path     string
	InMemory bool
}

type LayoutConfig struct {
	BasePath string // {base}/{model}/{version}/ watched by the model server
	WorkDir  string // intermediate export, frozen and optimized graphs
}

type ToolsConfig struct {
	ExportCommand     []string
	FreezeGraphBin    string
	TransformGraphBin string
	SummarizeGraphBin string
	ReexportCommand   []string
	InputTensor       string
	OutputNode        string
	OutputTensors     map[string]string // signature output name -> tensor name
	Transforms        []string
	Timeout           time.Duration
}

type ServingConfig struct {
	Binary         string
	Host           string
	ModelName      string
	GRPCPort       int
	RESTPort       int
	EnableBatching bool
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

type BenchmarkConfig struct {
	Requests      int
	Warmup        int
	Rate          float64
	SignatureName string
	OutputKey     string
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	DefaultNS      string
	RuntimeVersion string
}

type PrometheusConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type GCSConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	CredentialsFile string
	Concurrency     int
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// DefaultTransforms is the ordered list of graph transform passes applied
// after freezing.
var DefaultTransforms = []string{
	"remove_nodes(op=Identity)",
	"merge_duplicate_nodes",
	"strip_unused_nodes",
	"fold_constants(ignore_errors=true)",
	"fold_batch_norms",
	"quantize_nodes",
	"quantize_weights",
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads an optional YAML/TOML/JSON file, then lets the environment
// override it.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Env
	v.AutomaticEnv()

	outputs, err := parseTensorMap(v.GetString("TOOLS_OUTPUT_TENSORS"))
	if err != nil {
		return nil, err
	}
	durations := &durationReader{v: v}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DATABASE_ENABLED"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations.get("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Store: StoreConfig{
			Path:     v.GetString("STORE_PATH"),
			InMemory: v.GetBool("STORE_IN_MEMORY"),
		},
		Layout: LayoutConfig{
			BasePath: v.GetString("LAYOUT_BASE_PATH"),
			WorkDir:  v.GetString("LAYOUT_WORK_DIR"),
		},
		Tools: ToolsConfig{
			ExportCommand:     strings.Fields(v.GetString("TOOLS_EXPORT_COMMAND")),
			FreezeGraphBin:    v.GetString("TOOLS_FREEZE_GRAPH_BIN"),
			TransformGraphBin: v.GetString("TOOLS_TRANSFORM_GRAPH_BIN"),
			SummarizeGraphBin: v.GetString("TOOLS_SUMMARIZE_GRAPH_BIN"),
			ReexportCommand:   strings.Fields(v.GetString("TOOLS_REEXPORT_COMMAND")),
			InputTensor:       v.GetString("TOOLS_INPUT_TENSOR"),
			OutputNode:        v.GetString("TOOLS_OUTPUT_NODE"),
			OutputTensors:     outputs,
			Transforms:        splitList(v.GetString("TOOLS_TRANSFORMS"), DefaultTransforms),
			Timeout:           durations.get("TOOLS_TIMEOUT", 30*time.Minute),
		},
		Serving: ServingConfig{
			Binary:         v.GetString("SERVING_BINARY"),
			Host:           v.GetString("SERVING_HOST"),
			ModelName:      v.GetString("SERVING_MODEL_NAME"),
			GRPCPort:       v.GetInt("SERVING_GRPC_PORT"),
			RESTPort:       v.GetInt("SERVING_REST_PORT"),
			EnableBatching: v.GetBool("SERVING_ENABLE_BATCHING"),
			ReadyTimeout:   durations.get("SERVING_READY_TIMEOUT", time.Minute),
			PollInterval:   durations.get("SERVING_POLL_INTERVAL", time.Second),
			RequestTimeout: durations.get("SERVING_REQUEST_TIMEOUT", 30*time.Second),
		},
		Benchmark: BenchmarkConfig{
			Requests:      v.GetInt("BENCHMARK_REQUESTS"),
			Warmup:        v.GetInt("BENCHMARK_WARMUP"),
			Rate:          v.GetFloat64("BENCHMARK_RATE"),
			SignatureName: v.GetString("BENCHMARK_SIGNATURE_NAME"),
			OutputKey:     v.GetString("BENCHMARK_OUTPUT_KEY"),
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("KUBERNETES_ENABLED"),
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			DefaultNS:      v.GetString("KUBERNETES_DEFAULT_NAMESPACE"),
			RuntimeVersion: v.GetString("KUBERNETES_RUNTIME_VERSION"),
		},
		Prometheus: PrometheusConfig{
			Enabled: v.GetBool("PROMETHEUS_ENABLED"),
			URL:     v.GetString("PROMETHEUS_URL"),
			Timeout: durations.get("PROMETHEUS_TIMEOUT", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
		GCS: GCSConfig{
			Enabled:         v.GetBool("GCS_ENABLED"),
			Bucket:          v.GetString("GCS_BUCKET"),
			Prefix:          v.GetString("GCS_PREFIX"),
			CredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
			Concurrency:     v.GetInt("GCS_CONCURRENCY"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
	}

	if err := errors.Join(durations.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "optimizer")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_NAME", "serving_optimizer")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("STORE_PATH", ".optimizer/store")
	v.SetDefault("STORE_IN_MEMORY", false)

	v.SetDefault("LAYOUT_BASE_PATH", "models")
	v.SetDefault("LAYOUT_WORK_DIR", "work")

	v.SetDefault("TOOLS_EXPORT_COMMAND", "python3 train_and_export.py")
	v.SetDefault("TOOLS_FREEZE_GRAPH_BIN", "freeze_graph")
	v.SetDefault("TOOLS_TRANSFORM_GRAPH_BIN", "transform_graph")
	v.SetDefault("TOOLS_SUMMARIZE_GRAPH_BIN", "summarize_graph")
	v.SetDefault("TOOLS_REEXPORT_COMMAND", "python3 graph_to_saved_model.py")
	v.SetDefault("TOOLS_INPUT_TENSOR", "images:0")
	v.SetDefault("TOOLS_OUTPUT_NODE", "head/predictions/class_ids")
	v.SetDefault("TOOLS_OUTPUT_TENSORS", "class_ids=head/predictions/class_ids:0,scores=head/predictions/probabilities:0")
	v.SetDefault("TOOLS_TRANSFORMS", "")
	v.SetDefault("TOOLS_TIMEOUT", "30m")

	v.SetDefault("SERVING_BINARY", "tensorflow_model_server")
	v.SetDefault("SERVING_HOST", "localhost")
	v.SetDefault("SERVING_MODEL_NAME", "mnist_classifier")
	v.SetDefault("SERVING_GRPC_PORT", 8500)
	v.SetDefault("SERVING_REST_PORT", 8501)
	v.SetDefault("SERVING_ENABLE_BATCHING", true)
	v.SetDefault("SERVING_READY_TIMEOUT", "60s")
	v.SetDefault("SERVING_POLL_INTERVAL", "1s")
	v.SetDefault("SERVING_REQUEST_TIMEOUT", "30s")

	v.SetDefault("BENCHMARK_REQUESTS", 100)
	v.SetDefault("BENCHMARK_WARMUP", 0)
	v.SetDefault("BENCHMARK_RATE", 0.0)
	v.SetDefault("BENCHMARK_SIGNATURE_NAME", "")
	v.SetDefault("BENCHMARK_OUTPUT_KEY", "")

	v.SetDefault("KUBERNETES_ENABLED", false)
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_KUBECONFIG", "")
	v.SetDefault("KUBERNETES_DEFAULT_NAMESPACE", "model-serving")
	v.SetDefault("KUBERNETES_RUNTIME_VERSION", "")

	v.SetDefault("PROMETHEUS_ENABLED", false)
	v.SetDefault("PROMETHEUS_URL", "http://localhost:9090")
	v.SetDefault("PROMETHEUS_TIMEOUT", "30s")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("GCS_ENABLED", false)
	v.SetDefault("GCS_BUCKET", "")
	v.SetDefault("GCS_PREFIX", "models")
	v.SetDefault("GCS_CREDENTIALS_FILE", "")
	v.SetDefault("GCS_CONCURRENCY", 4)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "serving-optimizer")
}

// durationReader parses duration keys and keeps every malformed value, so
// Load reports them all at once.
type durationReader struct {
	v    *viper.Viper
	errs []error
}

func (r *durationReader) get(key string, fallback time.Duration) time.Duration {
	s := strings.TrimSpace(r.v.GetString(key))
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid duration %s=%q: %w", key, s, err))
		return fallback
	}
	return d
}

// splitList splits on ';' because transform arguments contain commas.
func splitList(s string, fallback []string) []string {
	if strings.TrimSpace(s) == "" {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseTensorMap(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, tensor, ok := strings.Cut(pair, "=")
		if !ok || name == "" || tensor == "" {
			return nil, fmt.Errorf("invalid output tensor mapping %q, want name=tensor", pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(tensor)
	}
	return out, nil
}
