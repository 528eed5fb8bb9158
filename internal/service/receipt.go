package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"coach/internal/domain"
	"coach/internal/redis"
	"coach/internal/repository"
)

// ReceiptService finalizes settled checkouts and serves invoices. It adds no
// invariants of its own: finalize is a composition of clearing the draft and
// confirming the booking.
type ReceiptService struct {
	draftStore  redis.DraftStoreInterface
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	tripRepo    repository.TripRepository
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(
	draftStore redis.DraftStoreInterface,
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	tripRepo repository.TripRepository,
) *ReceiptService {
	return &ReceiptService{
		draftStore:  draftStore,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		tripRepo:    tripRepo,
	}
}

// Ensure ReceiptService implements Finalizer.
var _ Finalizer = (*ReceiptService)(nil)

// Finalize confirms the booking and clears the session draft. The session ID
// may be empty when finalization runs from a reconstructed saga (the
// redirect return of a torn-down process); the draft then expires on its own
// TTL.
func (s *ReceiptService) Finalize(ctx context.Context, sessionID, bookingID string) (*domain.Booking, error) {
	if err := s.bookingRepo.UpdateStatus(ctx, bookingID, domain.BookingStatusConfirmed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, domain.Wrap(domain.KindRetryable, "booking confirm failed", err)
	}

	if sessionID != "" {
		if err := s.draftStore.Clear(ctx, sessionID); err != nil {
			return nil, domain.Wrap(domain.KindRetryable, "draft clear failed", err)
		}
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "booking lookup failed", err)
	}
	return booking, nil
}

// GetInvoice renders the invoice PDF for a confirmed booking. Unconfirmed or
// unknown bookings have no invoice.
func (s *ReceiptService) GetInvoice(ctx context.Context, bookingID string) ([]byte, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, domain.Wrap(domain.KindRetryable, "booking lookup failed", err)
	}
	if booking.Status != domain.BookingStatusConfirmed {
		return nil, ErrInvoiceNotFound
	}

	payment, err := s.paymentRepo.GetLatestByBookingID(ctx, bookingID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	}

	// Route names are cosmetic on the invoice; fall back to the raw ref.
	route := booking.TripRef
	if trip, err := s.tripRepo.GetByRef(ctx, booking.TripRef); err == nil {
		route = trip.RouteFrom + " - " + trip.RouteTo
	}

	return buildInvoicePDF(booking, payment, route)
}

func buildInvoicePDF(booking *domain.Booking, payment *domain.Payment, route string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice No : INV-"+booking.ID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date       : "+booking.CreatedAt.Format("Jan 02, 2006 3:04 PM"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Passenger  : "+booking.Passenger.FullName)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Phone      : "+booking.Passenger.Phone)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "TRIP")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Route      : "+route)
	pdf.Ln(7)
	seats := ""
	for i, seat := range booking.Seats {
		if i > 0 {
			seats += ", "
		}
		seats += seat
	}
	pdf.Cell(0, 7, "Seats      : "+seats)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "PAYMENT")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	if payment != nil {
		pdf.Cell(0, 7, "Method     : "+string(payment.Method))
		pdf.Ln(7)
		if payment.TransactionCode != "" {
			pdf.Cell(0, 7, "Reference  : "+payment.TransactionCode)
			pdf.Ln(7)
		}
	}
	pdf.Cell(0, 7, fmt.Sprintf("Total      : %s VND", formatAmount(booking.TotalAmount)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Generated "+time.Now().Format("2006-01-02 15:04")+" - thank you for travelling with us.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatAmount groups digits in thousands, the way amounts appear on
// printed tickets.
func formatAmount(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	return string(out)
}
