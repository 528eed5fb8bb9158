package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coach/internal/domain"
	"coach/internal/gateway"
	"coach/internal/service"
)

// PaymentResultHandler consumes the card gateway's return redirect. The
// browser lands here after an external hop; no checkout session header is
// present, only the query parameters the gateway echoes back, signed with
// the shared gateway secret.
type PaymentResultHandler struct {
	reconciler *service.RedirectReconciler
	secret     []byte
}

// NewPaymentResultHandler creates a new PaymentResultHandler.
func NewPaymentResultHandler(reconciler *service.RedirectReconciler, secret string) *PaymentResultHandler {
	return &PaymentResultHandler{reconciler: reconciler, secret: []byte(secret)}
}

// PaymentResultResponse is the HTTP shape of a reconciled callback.
type PaymentResultResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Settled   bool   `json:"settled"`
	Replayed  bool   `json:"replayed,omitempty"`
}

// HandleReturn handles GET /payment-result
func (h *PaymentResultHandler) HandleReturn(c *gin.Context) {
	query := c.Request.URL.Query()

	// The params ride through the passenger's browser, so anyone can craft
	// them; only the gateway's signature makes them trustworthy.
	if !gateway.VerifySignature(h.secret, query) {
		respondError(c, domain.E(domain.KindValidation, "invalid gateway signature"))
		return
	}

	result, err := h.reconciler.HandleReturn(c.Request.Context(), gateway.ParseReturn(query))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PaymentResultResponse{
		BookingID: result.Booking.ID,
		Status:    string(result.Booking.Status),
		Settled:   result.Settled,
		Replayed:  result.Replayed,
	}
	respondOK(c, http.StatusOK, resp)
}
