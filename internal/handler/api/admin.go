package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	resdto "vmbook/internal/handler/dto/response"
	"vmbook/internal/pkg/errs"
	"vmbook/internal/usecase/commands"
	"vmbook/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	adminCommands  commands.AdminCommands
	bookingQueries queries.BookingQueries
	auditQueries   queries.AuditQueries
}

func NewAdminHandler(adminCommands commands.AdminCommands, bookingQueries queries.BookingQueries, auditQueries queries.AuditQueries) *AdminHandler {
	return &AdminHandler{
		adminCommands:  adminCommands,
		bookingQueries: bookingQueries,
		auditQueries:   auditQueries,
	}
}

// @Summary List all bookings
// @Description List every booking regardless of owner
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} resdto.BookingResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/bookings [get]
func (h *AdminHandler) ListBookings(c *gin.Context) {
	views, err := h.bookingQueries.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromBookingViews(views))
}

// @Summary Approve booking
// @Description Approve a pending booking and schedule its trigger
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /admin/bookings/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	h.runTransition(c, h.adminCommands.Approve)
}

// @Summary Reject booking
// @Description Reject a booking and remove its trigger
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /admin/bookings/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	h.runTransition(c, h.adminCommands.Reject)
}

// @Summary Run booking now
// @Description Fire the provisioning workflow immediately
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 202
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/bookings/{id}/run [post]
func (h *AdminHandler) RunNow(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	if err := h.adminCommands.RunNow(c.Request.Context(), id); err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary Complete booking
// @Description Mark a running booking as completed
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /admin/bookings/{id}/complete [post]
func (h *AdminHandler) Complete(c *gin.Context) {
	h.runTransition(c, h.adminCommands.Complete)
}

// @Summary List audit entries
// @Description Recent audit entries, newest first, optionally filtered by booking
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 100)"
// @Param booking_id query string false "Filter by booking ID"
// @Success 200 {array} resdto.AuditEntryResponse
// @Failure 400 {object} map[string]string
// @Router /admin/audit [get]
func (h *AdminHandler) ListAudit(c *gin.Context) {
	var limit int32
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = int32(parsed)
	}

	var bookingID *uuid.UUID
	if raw := c.Query("booking_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid booking ID format",
			})
			return
		}
		bookingID = &id
	}

	entries, err := h.auditQueries.ListRecent(c.Request.Context(), limit, bookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromAuditEntries(entries))
}

func (h *AdminHandler) runTransition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) error) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		h.writeTransitionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid booking ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) writeTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Booking not found",
		})
	case errors.Is(err, errs.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Booking is not in an eligible state",
		})
	case errors.Is(err, errs.ErrBookingConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Time window overlaps an existing booking",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
