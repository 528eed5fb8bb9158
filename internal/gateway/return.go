package gateway

import "net/url"

// ReturnResult is the normalized outcome carried by the gateway's return
// callback query parameters.
type ReturnResult struct {
	BookingID       string
	Code            string
	TransactionCode string
	Success         bool
}

// ParseReturn extracts the result from the callback query. An unknown or
// missing code is failed-safe: success is never assumed on ambiguous input.
func ParseReturn(query url.Values) ReturnResult {
	code := query.Get("code")
	return ReturnResult{
		BookingID:       query.Get("bookingId"),
		Code:            code,
		TransactionCode: query.Get("txn"),
		Success:         code == SuccessCode,
	}
}
