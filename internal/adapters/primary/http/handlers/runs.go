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

// CreateRun starts a pipeline run in the background and answers with its
// initial state. Poll GET /runs/:id for progress.
func (h *Handler) CreateRun(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.pipelineSvc.Start(c.Request.Context(), req.ToRunRequest())
	if err != nil {
		log.WithError(err).WithField("model", req.ModelName).Error("start pipeline run failed")
		mapDomainError(c, err)
		return
	}

	c.Header("Location", c.FullPath()+"/"+run.ID.String())
	c.JSON(http.StatusAccepted, dto.ToRunResponse(run))
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.RunListFilter{
		ModelName: c.Query("model_name"),
		Status:    c.Query("status"),
		Limit:     limit,
		Offset:    offset,
	}

	runs, total, err := h.pipelineSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list pipeline runs failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.ToRunResponse(run))
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.pipelineSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}
