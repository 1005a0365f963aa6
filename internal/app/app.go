// Package app wires the secondary adapters into the core services. Both the
// API server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/adapters/secondary/badgerstore"
	"serving-optimizer/internal/adapters/secondary/filesystem"
	"serving-optimizer/internal/adapters/secondary/gcs"
	"serving-optimizer/internal/adapters/secondary/kserve"
	"serving-optimizer/internal/adapters/secondary/metrics"
	"serving-optimizer/internal/adapters/secondary/postgres"
	"serving-optimizer/internal/adapters/secondary/prometheus"
	"serving-optimizer/internal/adapters/secondary/tfserving"
	"serving-optimizer/internal/adapters/secondary/toolchain"
	"serving-optimizer/internal/adapters/secondary/tracing"
	"serving-optimizer/internal/config"
	ports "serving-optimizer/internal/core/ports/output"
	"serving-optimizer/internal/core/services"
	"serving-optimizer/internal/proxy"
)

type App struct {
	Config *config.Config
	Layout *filesystem.Layout

	Graphs    *services.GraphService
	Pipeline  *services.PipelineService
	Benchmark *services.BenchmarkService
	Versions  *services.VersionService
	Serving   *services.ServingService

	// Proxy forwards raw predict requests to the model server
	Proxy   *proxy.Client
	Metrics ports.MetricsRecorder

	recorder *metrics.Recorder
	ping     func(ctx context.Context) error
	closers  []func() error
}

// New builds every adapter the configuration enables. Optional integrations
// that fail to initialise are logged and left out; storage failures are fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	shutdown, err := tracing.Setup(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	layout, err := filesystem.NewLayout(cfg.Layout.BasePath, cfg.Layout.WorkDir)
	if err != nil {
		return nil, err
	}
	a.Layout = layout

	// Repositories: postgres when configured, the embedded store otherwise
	runRepo, benchRepo, err := a.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var recorder ports.MetricsRecorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		a.recorder = metrics.NewRecorder()
		recorder = a.recorder
	}

	publisher, err := gcs.NewPublisher(ctx, &cfg.GCS)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)
	if publisher.IsAvailable() {
		log.WithField("base_uri", publisher.BaseURI("{model}")).Info("GCS publisher initialized")
	}

	// KServe Client (Optional - based on config)
	var kserveClient ports.KServeClient
	if cfg.Kubernetes.Enabled {
		client, err := kserve.NewKServeClient(&cfg.Kubernetes)
		if err != nil {
			log.Warnf("KServe client init failed (continuing without K8s integration): %v", err)
		} else {
			kserveClient = client
			log.Info("KServe client initialized")
		}
	} else {
		log.Debug("KServe integration disabled")
	}

	// Prometheus Client (Optional - based on config)
	var prometheusClient ports.PrometheusClient
	if cfg.Prometheus.Enabled {
		prometheusClient = prometheus.NewPrometheusClient(&cfg.Prometheus)
		log.Info("Prometheus client initialized")
	}

	a.Metrics = recorder

	tools := toolchain.New(toolchain.NewExecRunner(cfg.Tools.Timeout), cfg.Tools)
	servingURL := fmt.Sprintf("http://%s:%d", cfg.Serving.Host, cfg.Serving.RESTPort)
	predict := tfserving.NewClient(servingURL, tfserving.WithTimeout(cfg.Serving.RequestTimeout))
	a.Proxy = proxy.NewClient(servingURL, cfg.Serving.RequestTimeout)

	a.Graphs = services.NewGraphService(tools, layout)
	a.Pipeline = services.NewPipelineService(a.Graphs, layout, runRepo, publisher, recorder)
	a.Benchmark = services.NewBenchmarkService(predict, benchRepo, recorder)
	a.Versions = services.NewVersionService(layout, publisher, func() (ports.VersionWatcher, error) {
		return filesystem.NewWatcher()
	})
	a.Serving = services.NewServingService(
		tfserving.NewServer(cfg.Serving.Binary),
		predict,
		layout,
		kserveClient,
		prometheusClient,
		publisher,
		services.ServingOptions{
			GRPCPort:       cfg.Serving.GRPCPort,
			RESTPort:       cfg.Serving.RESTPort,
			EnableBatching: cfg.Serving.EnableBatching,
			ReadyTimeout:   cfg.Serving.ReadyTimeout,
			PollInterval:   cfg.Serving.PollInterval,
		},
	)

	ok = true
	return a, nil
}

func (a *App) openRepositories(ctx context.Context, cfg *config.Config) (ports.PipelineRunRepository, ports.BenchmarkRepository, error) {
	if cfg.Database.Enabled {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create db pool: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if err := pool.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping db: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, err
		}
		log.Info("database connection established")

		a.ping = pool.Ping
		return postgres.NewPipelineRunRepository(pool), postgres.NewBenchmarkRepository(pool), nil
	}

	store, err := badgerstore.Open(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.ping = func(context.Context) error { return nil }
	return badgerstore.NewPipelineRunRepository(store), badgerstore.NewBenchmarkRepository(store), nil
}

// Ping reports whether the run store is reachable
func (a *App) Ping(ctx context.Context) error {
	return a.ping(ctx)
}

// MetricsHandler serves the Prometheus registry, nil when metrics are disabled
func (a *App) MetricsHandler() http.Handler {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.Handler()
}

// Close releases adapters in reverse creation order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
