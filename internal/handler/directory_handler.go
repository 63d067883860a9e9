package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bk-tutor/tutor-support-api/internal/service"
	"github.com/bk-tutor/tutor-support-api/pkg/response"
)

// DirectoryHandler exposes the tutor directory used by students when
// picking a tutor.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler constructs DirectoryHandler.
func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// ListTutors godoc
// @Summary List tutors available for pairing
// @Tags Directory
// @Produce json
// @Param search query string false "Match name or student number"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *DirectoryHandler) ListTutors(c *gin.Context) {
	tutors, err := h.directory.SearchTutors(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, nil)
}
