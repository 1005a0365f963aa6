package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/adapters/primary/http/dto"
)

func (h *Handler) CreateDeployment(c *gin.Context) {
	var req dto.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.servingSvc.Deploy(c.Request.Context(), req.ToDeployRequest())
	if err != nil {
		log.WithError(err).WithField("model", req.ModelName).Error("deploy failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDeploymentResponse(d))
}

// GetDeployment reads the live cluster state. With ?window=15m the
// server-side latency and error rate over that window are attached.
func (h *Handler) GetDeployment(c *gin.Context) {
	name := c.Param("name")

	d, err := h.servingSvc.GetDeployment(c.Request.Context(), c.Query("namespace"), name)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	resp := dto.ToDeploymentResponse(d)

	if w := c.Query("window"); w != "" {
		window, err := time.ParseDuration(w)
		if err != nil || window <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		metrics, err := h.servingSvc.DeploymentMetrics(c.Request.Context(), name, window)
		if err != nil {
			// state is still useful without metrics
			log.WithError(err).WithField("deployment", name).Warn("query deployment metrics failed")
		}
		resp.Metrics = metrics
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteDeployment(c *gin.Context) {
	if err := h.servingSvc.Undeploy(c.Request.Context(), c.Query("namespace"), c.Param("name")); err != nil {
		mapDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
