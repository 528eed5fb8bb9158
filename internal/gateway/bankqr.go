package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
)

// QRBuilder produces the payload rendered as a bank-transfer QR code.
// The transfer itself is confirmed out of band; the payment stays PENDING
// until that confirmation arrives.
type QRBuilder interface {
	Build(ctx context.Context, bookingID string, amount int64) (string, error)
}

// BankQRBuilder encodes a transfer instruction for the configured merchant
// account. The booking ID doubles as the transfer reference so incoming
// transfers can be matched back to bookings.
type BankQRBuilder struct {
	bankCode string
	account  string
}

// NewBankQRBuilder creates a new BankQRBuilder.
func NewBankQRBuilder(bankCode, account string) *BankQRBuilder {
	return &BankQRBuilder{bankCode: bankCode, account: account}
}

// Ensure BankQRBuilder implements QRBuilder.
var _ QRBuilder = (*BankQRBuilder)(nil)

type qrPayload struct {
	BankCode  string `json:"bank_code"`
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Build returns the base64-encoded QR payload for a booking.
func (b *BankQRBuilder) Build(_ context.Context, bookingID string, amount int64) (string, error) {
	data, err := json.Marshal(qrPayload{
		BankCode:  b.bankCode,
		Account:   b.account,
		Amount:    amount,
		Reference: bookingID,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
