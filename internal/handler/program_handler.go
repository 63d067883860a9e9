package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bk-tutor/tutor-support-api/internal/service"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
	"github.com/bk-tutor/tutor-support-api/pkg/response"
)

// ProgramHandler exposes support-program endpoints.
type ProgramHandler struct {
	programs *service.ProgramService
}

// NewProgramHandler constructs ProgramHandler.
func NewProgramHandler(programs *service.ProgramService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// ListOpen godoc
// @Summary List programs open for registration
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *ProgramHandler) ListOpen(c *gin.Context) {
	programs, err := h.programs.ListOpen(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, nil)
}

// Create godoc
// @Summary Create a support program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.CreateProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Router /programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Register godoc
// @Summary Register the caller for a program
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 201 {object} response.Envelope
// @Router /programs/{id}/registrations [post]
func (h *ProgramHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	registration, err := h.programs.Register(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// MyRegistrations godoc
// @Summary List the caller's program registrations
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *ProgramHandler) MyRegistrations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	registrations, err := h.programs.ListRegistrations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}
