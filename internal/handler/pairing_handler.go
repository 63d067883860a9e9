package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bk-tutor/tutor-support-api/internal/service"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
	"github.com/bk-tutor/tutor-support-api/pkg/response"
)

// PairingHandler exposes student-tutor pairing endpoints.
type PairingHandler struct {
	pairings *service.PairingService
}

// NewPairingHandler constructs PairingHandler.
func NewPairingHandler(pairings *service.PairingService) *PairingHandler {
	return &PairingHandler{pairings: pairings}
}

// SelectTutor godoc
// @Summary Request pairing with a tutor
// @Tags Pairings
// @Accept json
// @Produce json
// @Param payload body service.SelectTutorRequest true "Tutor reference"
// @Success 202 {object} response.Envelope
// @Router /pairings [post]
func (h *PairingHandler) SelectTutor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SelectTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.pairings.SelectTutor(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	// The outcome is intentionally the same whether or not a new request
	// was queued, so callers cannot probe tutor existence.
	response.JSON(c, http.StatusAccepted, gin.H{"submitted": true}, nil, map[string]interface{}{"created": created})
}

// Respond godoc
// @Summary Accept or reject a pairing request
// @Tags Pairings
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RespondPairingRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /tutor/pairings/{id}/respond [post]
func (h *PairingHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RespondPairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if !req.Accept && strings.TrimSpace(req.Reason) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a reason is required when rejecting"))
		return
	}
	request, err := h.pairings.Respond(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Pending godoc
// @Summary List pending pairing requests addressed to the caller
// @Tags Pairings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor/pairings [get]
func (h *PairingHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.pairings.PendingForTutor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Mine godoc
// @Summary List the caller's pairing requests
// @Tags Pairings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pairings [get]
func (h *PairingHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.pairings.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}
