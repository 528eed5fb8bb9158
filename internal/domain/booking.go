package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// Active reports whether the booking still reserves its seats.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Booking is the tentative reservation created from a draft. TotalAmount is
// always computed server-side as unit price times seat count.
type Booking struct {
	ID           string
	TripRef      string
	Seats        []string
	Passenger    Passenger
	PickupPoint  string
	DropoffPoint string
	TotalAmount  int64
	Status       BookingStatus
	Fingerprint  string
	CreatedAt    time.Time
}
