package domain

import "time"

// Trip is the scheduled departure a booking reserves seats on. Trip CRUD is
// owned elsewhere; the checkout core only reads the current unit price.
type Trip struct {
	Ref       string
	RouteFrom string
	RouteTo   string
	DepartAt  time.Time
	UnitPrice int64
	SeatCount int
}
