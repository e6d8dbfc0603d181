package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultFacilitatorURL = "https://x402.org/facilitator"

	maxFacilitatorBody = 1 << 20
)

var _ Verifier = (*Facilitator)(nil)

// Facilitator talks to an x402 facilitator's /verify and /settle endpoints.
// Failures are returned as is; nothing is retried.
type Facilitator struct {
	baseURL string
	client  *http.Client
}

type facilitatorRequest struct {
	X402Version         int          `json:"x402Version"`
	PaymentPayload      Payload      `json:"paymentPayload"`
	PaymentRequirements Requirements `json:"paymentRequirements"`
}

// NewFacilitator returns a client for baseURL. A nil client gets a 15s timeout.
func NewFacilitator(baseURL string, client *http.Client) *Facilitator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Facilitator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (f *Facilitator) Verify(ctx context.Context, p Payload, req Requirements) (VerifyResponse, error) {
	var out VerifyResponse

	err := f.post(ctx, "verify", p, req, &out)
	if err != nil {
		return VerifyResponse{}, err
	}

	return out, nil
}

func (f *Facilitator) Settle(ctx context.Context, p Payload, req Requirements) (SettleResponse, error) {
	var out SettleResponse

	err := f.post(ctx, "settle", p, req, &out)
	if err != nil {
		return SettleResponse{}, err
	}

	return out, nil
}

func (f *Facilitator) post(ctx context.Context, op string, p Payload, req Requirements, out any) error {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         X402Version,
		PaymentPayload:      p,
		PaymentRequirements: req,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("facilitator %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorBody))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}

	return nil
}
