package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coach/internal/service"
)

// BookingHandler serves booking lookups and invoices outside the checkout
// flow, keyed by booking ID rather than session.
type BookingHandler struct {
	bookings *service.BookingService
	receipts *service.ReceiptService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *service.BookingService, receipts *service.ReceiptService) *BookingHandler {
	return &BookingHandler{bookings: bookings, receipts: receipts}
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, bookingResponse(booking))
}

// GetInvoice handles GET /v1/bookings/:id/invoice
func (h *BookingHandler) GetInvoice(c *gin.Context) {
	pdf, err := h.receipts.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="invoice-`+c.Param("id")+`.pdf"`)
	c.Header("Content-Length", strconv.Itoa(len(pdf)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
