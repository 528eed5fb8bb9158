package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coach/internal/domain"
	"coach/internal/service"
)

// sessionHeader carries the checkout session ID. The session is an opaque
// client-generated token; it only needs to be stable for one checkout.
const sessionHeader = "X-Checkout-Session"

// CheckoutHandler handles HTTP requests for the checkout saga.
type CheckoutHandler struct {
	orchestrator *service.CheckoutOrchestrator
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(orchestrator *service.CheckoutOrchestrator) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator}
}

// DraftRequest is the HTTP request body for saving a draft.
type DraftRequest struct {
	TripRef     string   `json:"trip_ref"`
	SeatRefs    []string `json:"seat_refs"`
	Passenger   struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
	} `json:"passenger"`
	PickupNote  string `json:"pickup_note"`
	DropoffNote string `json:"dropoff_note"`
}

// PaymentRequest is the HTTP request body for advancing to payment.
type PaymentRequest struct {
	Method   string `json:"method"`
	BankCode string `json:"bank_code"`
}

// BookingResponse is the HTTP shape of a booking.
type BookingResponse struct {
	ID           string   `json:"id"`
	TripRef      string   `json:"trip_ref"`
	Seats        []string `json:"seats"`
	TotalAmount  int64    `json:"total_amount"`
	Status       string   `json:"status"`
	PickupPoint  string   `json:"pickup_point,omitempty"`
	DropoffPoint string   `json:"dropoff_point,omitempty"`
}

// PaymentOutcomeResponse is the HTTP shape of a payment outcome.
type PaymentOutcomeResponse struct {
	Outcome     string `json:"outcome"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	QRPayload   string `json:"qr_payload,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func bookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		TripRef:      b.TripRef,
		Seats:        b.Seats,
		TotalAmount:  b.TotalAmount,
		Status:       string(b.Status),
		PickupPoint:  b.PickupPoint,
		DropoffPoint: b.DropoffPoint,
	}
}

func outcomeResponse(o *service.PaymentOutcome) PaymentOutcomeResponse {
	return PaymentOutcomeResponse{
		Outcome:     string(o.Kind),
		PaymentID:   o.Payment.ID,
		Status:      string(o.Payment.Status),
		Amount:      o.Payment.Amount,
		QRPayload:   o.QRPayload,
		RedirectURL: o.RedirectURL,
	}
}

func sessionID(c *gin.Context) string {
	return c.GetHeader(sessionHeader)
}

// SaveDraft handles PUT /v1/checkout/draft
func (h *CheckoutHandler) SaveDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.E(domain.KindValidation, "invalid request body"))
		return
	}

	draft := &domain.Draft{
		TripRef:  req.TripRef,
		SeatRefs: req.SeatRefs,
		Passenger: domain.Passenger{
			FullName: req.Passenger.FullName,
			Phone:    req.Passenger.Phone,
			Email:    req.Passenger.Email,
		},
		PickupNote:  req.PickupNote,
		DropoffNote: req.DropoffNote,
	}

	if err := h.orchestrator.SaveDraft(c.Request.Context(), sessionID(c), draft); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, draft)
}

// GetDraft handles GET /v1/checkout/draft
func (h *CheckoutHandler) GetDraft(c *gin.Context) {
	draft, err := h.orchestrator.GetDraft(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, draft)
}

// Abandon handles DELETE /v1/checkout/draft
func (h *CheckoutHandler) Abandon(c *gin.Context) {
	if err := h.orchestrator.Abandon(c.Request.Context(), sessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"abandoned": true})
}

// AdvanceToBooking handles POST /v1/checkout/booking
func (h *CheckoutHandler) AdvanceToBooking(c *gin.Context) {
	booking, err := h.orchestrator.AdvanceToBooking(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, bookingResponse(booking))
}

// AdvanceToPayment handles POST /v1/checkout/payment
func (h *CheckoutHandler) AdvanceToPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.E(domain.KindValidation, "invalid request body"))
		return
	}

	h.dispatch(c, domain.PaymentMethod(req.Method), service.PayParams{BankCode: req.BankCode})
}

// PayCash handles POST /v1/bookings/payments (counter payment, legacy shape)
func (h *CheckoutHandler) PayCash(c *gin.Context) {
	var req PaymentRequest
	_ = c.ShouldBindJSON(&req) // body optional: defaults to cash

	method := domain.PaymentMethod(req.Method)
	if method == "" {
		method = domain.PaymentMethodCash
	}
	h.dispatch(c, method, service.PayParams{})
}

// CreateBankingQR handles POST /v1/payments/create-banking-qr
func (h *CheckoutHandler) CreateBankingQR(c *gin.Context) {
	h.dispatch(c, domain.PaymentMethodBanking, service.PayParams{})
}

// CreateCardRedirect handles POST /v1/payments/vnpay
func (h *CheckoutHandler) CreateCardRedirect(c *gin.Context) {
	var req PaymentRequest
	_ = c.ShouldBindJSON(&req) // body optional: bank_code only
	h.dispatch(c, domain.PaymentMethodCard, service.PayParams{BankCode: req.BankCode})
}

func (h *CheckoutHandler) dispatch(c *gin.Context, method domain.PaymentMethod, params service.PayParams) {
	outcome, err := h.orchestrator.AdvanceToPayment(c.Request.Context(), sessionID(c), method, params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, outcomeResponse(outcome))
}

// Retreat handles POST /v1/checkout/retreat
func (h *CheckoutHandler) Retreat(c *gin.Context) {
	if err := h.orchestrator.RetreatToDraft(c.Request.Context(), sessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"step": string(domain.StepDrafting)})
}

// Finalize handles POST /v1/checkout/finalize
func (h *CheckoutHandler) Finalize(c *gin.Context) {
	booking, err := h.orchestrator.Finalize(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, bookingResponse(booking))
}
