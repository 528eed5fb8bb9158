package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Passenger is the contact attached to a draft or booking.
type Passenger struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// Draft is the in-progress checkout input held before a booking exists
// server-side. It lives in the draft store keyed by checkout session and is
// never trusted for pricing; the booking gateway recomputes the total from
// the trip's current unit price.
type Draft struct {
	TripRef       string        `json:"trip_ref"`
	SeatRefs      []string      `json:"seat_refs"`
	Passenger     Passenger     `json:"passenger"`
	PickupNote    string        `json:"pickup_note,omitempty"`
	DropoffNote   string        `json:"dropoff_note,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
}

// Fingerprint derives a stable identity for the draft from its trip, seats
// and passenger phone. Bookings store it so an ambiguous createBooking
// timeout can be resolved by re-querying instead of blind retry.
func (d *Draft) Fingerprint() string {
	seats := make([]string, len(d.SeatRefs))
	copy(seats, d.SeatRefs)
	sort.Strings(seats)

	h := sha256.New()
	h.Write([]byte(d.TripRef))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(seats, ",")))
	h.Write([]byte{0})
	h.Write([]byte(d.Passenger.Phone))
	return hex.EncodeToString(h.Sum(nil))
}
