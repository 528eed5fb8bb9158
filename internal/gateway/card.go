// Package gateway holds the clients for the external payment providers: the
// card gateway reached by full-page redirect and the bank-QR payload builder.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// SuccessCode is the gateway's sentinel result code for a successful card
// payment on the return callback.
const SuccessCode = "00"

// PaymentURLRequest contains the parameters for building a redirect URL.
type PaymentURLRequest struct {
	BookingID string
	Amount    int64
	BankCode  string // optional: preselected bank on the gateway page
}

// CardGateway builds redirect URLs toward the external card gateway.
// Completion never arrives through this interface; it comes back later on
// the return callback handled by the redirect reconciler.
type CardGateway interface {
	BuildPaymentURL(ctx context.Context, req PaymentURLRequest) (string, error)
}

// CardClient is the production CardGateway. The gateway authenticates
// requests by an HMAC-SHA512 signature over the sorted query string.
type CardClient struct {
	payURL    string
	returnURL string
	secret    []byte
	now       func() time.Time
}

// NewCardClient creates a new CardClient.
func NewCardClient(payURL, returnURL, secret string) *CardClient {
	return &CardClient{
		payURL:    payURL,
		returnURL: returnURL,
		secret:    []byte(secret),
		now:       time.Now,
	}
}

// Ensure CardClient implements CardGateway.
var _ CardGateway = (*CardClient)(nil)

// BuildPaymentURL builds the signed redirect URL for a booking. The booking
// ID rides along as the transaction reference and is the only continuity
// token once the browser leaves the process.
func (c *CardClient) BuildPaymentURL(_ context.Context, req PaymentURLRequest) (string, error) {
	params := url.Values{}
	params.Set("ref", req.BookingID)
	params.Set("amount", strconv.FormatInt(req.Amount, 10))
	params.Set("return_url", c.returnURL)
	params.Set("created", c.now().UTC().Format("20060102150405"))
	if req.BankCode != "" {
		params.Set("bank_code", req.BankCode)
	}

	params.Set("signature", Sign(c.secret, params))

	return c.payURL + "?" + params.Encode(), nil
}

// Sign computes the HMAC-SHA512 signature over the sorted, encoded params,
// excluding any existing signature param.
func Sign(secret []byte, params url.Values) string {
	canonical := url.Values{}
	for key, values := range params {
		if key == "signature" {
			continue
		}
		canonical[key] = values
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(canonical.Encode())) // Encode sorts by key
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature param against the rest of the values.
func VerifySignature(secret []byte, params url.Values) bool {
	got, err := hex.DecodeString(params.Get("signature"))
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(Sign(secret, params))
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}
