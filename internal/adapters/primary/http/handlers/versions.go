package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/adapters/primary/http/dto"
	"serving-optimizer/internal/core/domain"
)

func (h *Handler) ListVersions(c *gin.Context) {
	name := c.Param("name")

	versions, err := h.versionSvc.List(c.Request.Context(), name)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	next, err := h.versionSvc.Next(c.Request.Context(), name)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListVersionsResponse(name, versions, next))
}

func (h *Handler) PublishVersion(c *gin.Context) {
	name := c.Param("name")
	version, err := domain.ParseVersion(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uri, err := h.versionSvc.Publish(c.Request.Context(), name, version)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"model":   name,
			"version": version,
		}).Error("publish version failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PublishVersionResponse{ModelName: name, Version: version, URI: uri})
}
