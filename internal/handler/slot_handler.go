package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bk-tutor/tutor-support-api/internal/service"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
	"github.com/bk-tutor/tutor-support-api/pkg/response"
)

// SlotHandler exposes tutor availability endpoints.
type SlotHandler struct {
	slots *service.SlotService
}

// NewSlotHandler constructs SlotHandler.
func NewSlotHandler(slots *service.SlotService) *SlotHandler {
	return &SlotHandler{slots: slots}
}

// Create godoc
// @Summary Publish an available time slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body service.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /tutor/slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.slots.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Delete godoc
// @Summary Remove an unbooked time slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body service.DeleteSlotRequest true "Slot start time"
// @Success 204
// @Router /tutor/slots [delete]
func (h *SlotHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DeleteSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.slots.Delete(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List the caller's published slots
// @Tags Slots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor/slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	slots, err := h.slots.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// BookDirect godoc
// @Summary Book a slot immediately without tutor confirmation
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body service.DirectBookingRequest true "Slot reference"
// @Success 201 {object} response.Envelope
// @Router /appointments [post]
func (h *SlotHandler) BookDirect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DirectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.slots.BookDirect(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}
