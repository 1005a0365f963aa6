package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const stateAvailable = "AVAILABLE"

// ServingOptions are the fixed settings of the local model server
type ServingOptions struct {
	GRPCPort       int
	RESTPort       int
	EnableBatching bool
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
}

// DeployRequest describes a cluster deployment of a published model
type DeployRequest struct {
	Name           string
	Namespace      string
	ModelName      string
	StorageURI     string // defaults to the publisher's base URI for the model
	RuntimeVersion string
	Labels         map[string]string
}

type ServingService struct {
	process   ports.ServerProcess
	client    ports.PredictionClient
	store     ports.ModelStore
	kserve    ports.KServeClient
	prom      ports.PrometheusClient
	publisher ports.ArtifactPublisher
	opts      ServingOptions
}

func NewServingService(
	process ports.ServerProcess,
	client ports.PredictionClient,
	store ports.ModelStore,
	kserve ports.KServeClient,
	prom ports.PrometheusClient,
	publisher ports.ArtifactPublisher,
	opts ServingOptions,
) *ServingService {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &ServingService{
		process:   process,
		client:    client,
		store:     store,
		kserve:    kserve,
		prom:      prom,
		publisher: publisher,
		opts:      opts,
	}
}

// ============================================================================
// Local model server
// ============================================================================

// Start launches the model server on {base}/{model} and waits until a
// version is AVAILABLE. The server is stopped again if it never gets ready.
func (s *ServingService) Start(ctx context.Context, modelName string) error {
	if err := domain.ValidateModelName(modelName); err != nil {
		return err
	}
	versions, err := s.store.ListVersions(modelName)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("%s: %w", s.store.ModelDir(modelName), domain.ErrModelNotFound)
	}

	err = s.process.Start(ctx, ports.ServerOptions{
		ModelName:      modelName,
		ModelBasePath:  s.store.ModelDir(modelName),
		GRPCPort:       s.opts.GRPCPort,
		RESTPort:       s.opts.RESTPort,
		EnableBatching: s.opts.EnableBatching,
	})
	if err != nil {
		return err
	}

	if err := s.WaitReady(ctx, modelName); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if stopErr := s.process.Stop(stopCtx); stopErr != nil && !errors.Is(stopErr, domain.ErrServerNotRunning) {
			log.WithError(stopErr).Warn("could not stop model server")
		}
		return err
	}
	return nil
}

// WaitReady polls the model status endpoint until some version is AVAILABLE.
func (s *ServingService) WaitReady(ctx context.Context, modelName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		statuses, err := s.client.ModelStatus(ctx, modelName)
		if err == nil {
			for _, st := range statuses {
				if st.State == stateAvailable {
					log.WithFields(log.Fields{
						"model":   modelName,
						"version": st.Version,
					}).Info("model server ready")
					return nil
				}
			}
			lastErr = fmt.Errorf("no version available yet")
		} else {
			lastErr = err
		}

		if !s.process.Running() {
			return fmt.Errorf("model server exited: %w", domain.ErrServerNotReady)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s: %v", domain.ErrServerNotReady, s.opts.ReadyTimeout, lastErr)
		case <-ticker.C:
		}
	}
}

func (s *ServingService) Stop(ctx context.Context) error {
	return s.process.Stop(ctx)
}

func (s *ServingService) Running() bool {
	return s.process.Running()
}

// Status returns the version states reported by the model server
func (s *ServingService) Status(ctx context.Context, modelName string) ([]ports.ModelVersionStatus, error) {
	if err := domain.ValidateModelName(modelName); err != nil {
		return nil, err
	}
	return s.client.ModelStatus(ctx, modelName)
}

// ============================================================================
// Cluster deployments
// ============================================================================

func (s *ServingService) Deploy(ctx context.Context, req DeployRequest) (*domain.Deployment, error) {
	if s.kserve == nil || !s.kserve.IsAvailable() {
		return nil, domain.ErrKServeNotAvailable
	}

	uri := req.StorageURI
	if uri == "" && s.publisher != nil && s.publisher.IsAvailable() {
		uri = s.publisher.BaseURI(req.ModelName)
	}

	d, err := domain.NewDeployment(req.Name, req.Namespace, req.ModelName, uri)
	if err != nil {
		return nil, err
	}
	d.RuntimeVersion = req.RuntimeVersion
	for k, v := range req.Labels {
		d.Labels[k] = v
	}

	res, err := s.kserve.Deploy(ctx, d)
	if err != nil {
		return nil, err
	}
	d.SetExternalID(res.ExternalID)
	if res.URL != "" {
		d.URL = res.URL
	}

	log.WithFields(log.Fields{
		"name":        d.Name,
		"storage_uri": d.StorageURI,
	}).Info("deployment created")
	return d, nil
}

// GetDeployment reads the live state of a deployment from the cluster
func (s *ServingService) GetDeployment(ctx context.Context, namespace, name string) (*domain.Deployment, error) {
	if s.kserve == nil || !s.kserve.IsAvailable() {
		return nil, domain.ErrKServeNotAvailable
	}
	status, err := s.kserve.GetStatus(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	d := &domain.Deployment{
		Name:      name,
		Namespace: namespace,
		State:     domain.DeploymentPending,
		Labels:    map[string]string{},
		UpdatedAt: time.Now(),
	}
	switch {
	case status.Ready:
		d.MarkReady(status.URL)
	case status.Error != "":
		d.MarkFailed(status.Error)
		d.URL = status.URL
	default:
		d.URL = status.URL
	}
	return d, nil
}

func (s *ServingService) Undeploy(ctx context.Context, namespace, name string) error {
	if s.kserve == nil || !s.kserve.IsAvailable() {
		return domain.ErrKServeNotAvailable
	}
	return s.kserve.Undeploy(ctx, namespace, name)
}

// DeploymentMetrics returns server-side latency and error rate of a
// deployment over the trailing window. Nil when Prometheus is not configured.
func (s *ServingService) DeploymentMetrics(ctx context.Context, name string, window time.Duration) (*ports.DeploymentMetrics, error) {
	if s.prom == nil {
		return nil, nil
	}
	end := time.Now()
	return s.prom.QueryDeploymentMetrics(ctx, name, ports.TimeRange{
		Start: end.Add(-window),
		End:   end,
		Step:  time.Minute,
	})
}
