package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	X402Version = 1
	SchemeExact = "exact"

	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

var ErrMalformedPayment = errors.New("malformed payment header")

// Requirements describes what a priced route accepts.
type Requirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description"`
	MimeType          string         `json:"mimeType"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Asset             string         `json:"asset"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// Payload is the decoded X-PAYMENT header. The scheme-specific part stays opaque.
type Payload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}

// Verifier checks and settles payment proofs. The gate is its only caller.
type Verifier interface {
	Verify(ctx context.Context, p Payload, req Requirements) (VerifyResponse, error)
	Settle(ctx context.Context, p Payload, req Requirements) (SettleResponse, error)
}

// UpstreamError is a non-2xx answer from the facilitator.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("facilitator %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("facilitator %s: status %d: %s", e.Op, e.Status, e.Body)
}

// DecodePayload parses a base64 (standard or URL alphabet) JSON X-PAYMENT header.
func DecodePayload(header string) (Payload, error) {
	header = strings.TrimSpace(header)

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(header, "="))
		if err != nil {
			return Payload{}, fmt.Errorf("%w: base64: %v", ErrMalformedPayment, err)
		}
	}

	var p Payload
	err = json.Unmarshal(raw, &p)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: json: %v", ErrMalformedPayment, err)
	}
	if p.Scheme == "" || len(p.Payload) == 0 {
		return Payload{}, fmt.Errorf("%w: missing scheme or payload", ErrMalformedPayment)
	}

	return p, nil
}

// EncodePayload is the inverse of DecodePayload.
func EncodePayload(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func encodeSettlement(s SettleResponse) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
