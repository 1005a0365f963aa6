package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/adapters/primary/http/middleware"
	"serving-optimizer/internal/core/domain"
)

// Predict passes a predict request through to the local model server and
// records its latency next to the benchmark measurements.
func (h *Handler) Predict(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateModelName(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path := "/v1/models/" + name
	if v := c.Param("version"); v != "" {
		if _, err := domain.ParseVersion(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path += "/versions/" + v
	}
	path += ":predict"

	headers := c.Request.Header.Clone()
	if id := c.GetString(middleware.ContextKey); id != "" {
		headers.Set(middleware.HeaderRequestID, id)
	}

	start := time.Now()
	resp, err := h.proxy.Forward(c.Request.Context(), http.MethodPost, path, c.Request.Body, headers)
	elapsed := time.Since(start)
	if err != nil {
		h.metrics.ObserveRequest(name, elapsed, false)
		log.WithError(err).WithField("model", name).Warn("predict passthrough failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	h.metrics.ObserveRequest(name, elapsed, resp.StatusCode < http.StatusMultipleChoices)
	c.DataFromReader(resp.StatusCode, resp.ContentLength, resp.Header.Get("Content-Type"), resp.Body, nil)
}
