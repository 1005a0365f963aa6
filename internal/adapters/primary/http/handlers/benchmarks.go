package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/adapters/primary/http/dto"
	ports "serving-optimizer/internal/core/ports/output"
)

// CreateBenchmark measures the model server synchronously. The request
// blocks for the whole measurement.
func (h *Handler) CreateBenchmark(c *gin.Context) {
	var req dto.CreateBenchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.benchmarkSvc.Run(c.Request.Context(), req.ToBenchmarkRequest(h.benchmark))
	if err != nil {
		log.WithError(err).WithField("model", req.ModelName).Error("benchmark failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToBenchmarkResponse(result))
}

func (h *Handler) ListBenchmarks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.BenchmarkListFilter{
		ModelName: c.Query("model_name"),
		Limit:     limit,
		Offset:    offset,
	}

	results, total, err := h.benchmarkSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list benchmarks failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.BenchmarkResponse, 0, len(results))
	for _, r := range results {
		items = append(items, dto.ToBenchmarkResponse(r))
	}

	c.JSON(http.StatusOK, dto.ListBenchmarksResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetBenchmark(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result, err := h.benchmarkSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToBenchmarkResponse(result))
}
