package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bk-tutor/tutor-support-api/internal/models"
	"github.com/bk-tutor/tutor-support-api/internal/service"
	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
	"github.com/bk-tutor/tutor-support-api/pkg/export"
	"github.com/bk-tutor/tutor-support-api/pkg/response"
)

// BookingHandler exposes the booking request lifecycle endpoints.
type BookingHandler struct {
	bookings *service.BookingService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
	}
}

// Create godoc
// @Summary Request a booking for an available slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.bookings.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Respond godoc
// @Summary Accept or reject a booking request
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RespondBookingRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /tutor/bookings/{id}/respond [post]
func (h *BookingHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RespondBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.bookings.Respond(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Withdraw a pending booking request
// @Tags Bookings
// @Produce json
// @Param id path string true "Request ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.bookings.Cancel(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Pending godoc
// @Summary List pending booking requests addressed to the caller
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor/bookings [get]
func (h *BookingHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.bookings.PendingForTutor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Upcoming godoc
// @Summary List the caller's upcoming confirmed sessions
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor/sessions [get]
func (h *BookingHandler) Upcoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	sessions, err := h.bookings.UpcomingForTutor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// ExportUpcoming godoc
// @Summary Export the caller's upcoming sessions as CSV or PDF
// @Tags Bookings
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /tutor/sessions/export [get]
func (h *BookingHandler) ExportUpcoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	sessions, err := h.bookings.UpcomingForTutor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	table := sessionsTable(claims.FullName, sessions)
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	var payload []byte
	var mimeType string
	switch format {
	case "csv":
		payload, err = h.csv.Render(table)
		mimeType = "text/csv"
	case "pdf":
		payload, err = h.pdf.Render(table)
		mimeType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("sessions-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mimeType, payload)
}

// History godoc
// @Summary List the caller's booking requests, newest first
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.bookings.HistoryForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// AvailableSlots godoc
// @Summary List bookable slots from the caller's accepted tutors
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /slots/available [get]
func (h *BookingHandler) AvailableSlots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	slots, err := h.bookings.AvailableSlots(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

func sessionsTable(tutorName string, sessions []models.BookingRequestDetail) export.Table {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		note := ""
		if s.Note != nil {
			note = *s.Note
		}
		rows = append(rows, []string{
			s.StartTime.UTC().Format("2006-01-02 15:04"),
			s.EndTime.UTC().Format("2006-01-02 15:04"),
			s.StudentName,
			s.StudentNo,
			note,
		})
	}
	return export.Table{
		Title:   fmt.Sprintf("Upcoming sessions for %s", tutorName),
		Headers: []string{"Start (UTC)", "End (UTC)", "Student", "Student No", "Note"},
		Rows:    rows,
	}
}
