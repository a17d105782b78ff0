package handlers

import (
	"net/http"

	"github.com/cmstools-dev/cmstools/internal/buildinfo"
	"github.com/gin-gonic/gin"
)

// VersionHandler handles version check endpoints.
type VersionHandler struct{}

// NewVersionHandler constructs a VersionHandler.
func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// GetVersion returns the running build's version metadata.
func (h *VersionHandler) GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    buildinfo.Version,
		"commit":     buildinfo.Commit,
		"build_date": buildinfo.BuildDate,
	})
}
