package handlers

import (
	"serving-optimizer/internal/config"
	ports "serving-optimizer/internal/core/ports/output"
	"serving-optimizer/internal/core/services"
	"serving-optimizer/internal/proxy"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	pipelineSvc  *services.PipelineService
	benchmarkSvc *services.BenchmarkService
	versionSvc   *services.VersionService
	servingSvc   *services.ServingService
	proxy        *proxy.Client
	metrics      ports.MetricsRecorder
	benchmark    config.BenchmarkConfig
}

func New(
	pipelineSvc *services.PipelineService,
	benchmarkSvc *services.BenchmarkService,
	versionSvc *services.VersionService,
	servingSvc *services.ServingService,
	proxy *proxy.Client,
	metrics ports.MetricsRecorder,
	benchmark config.BenchmarkConfig,
) *Handler {
	return &Handler{
		pipelineSvc:  pipelineSvc,
		benchmarkSvc: benchmarkSvc,
		versionSvc:   versionSvc,
		servingSvc:   servingSvc,
		proxy:        proxy,
		metrics:      metrics,
		benchmark:    benchmark,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Pipeline Runs
	r.POST("/runs", h.CreateRun)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)

	// Benchmarks
	r.POST("/benchmarks", h.CreateBenchmark)
	r.GET("/benchmarks", h.ListBenchmarks)
	r.GET("/benchmarks/:id", h.GetBenchmark)

	// Model Versions
	r.GET("/models/:name/versions", h.ListVersions)
	r.POST("/models/:name/versions/:version/publish", h.PublishVersion)

	// Predict passthrough to the local model server
	r.POST("/models/:name/predict", h.Predict)
	r.POST("/models/:name/versions/:version/predict", h.Predict)

	// Cluster Deployments
	r.POST("/deployments", h.CreateDeployment)
	r.GET("/deployments/:name", h.GetDeployment)
	r.DELETE("/deployments/:name", h.DeleteDeployment)
}
