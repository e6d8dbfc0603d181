package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const defaultMaxTimeoutSeconds = 60

type paymentRequiredResponse struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error"`
	Accepts     []Requirements `json:"accepts"`
	Payer       string         `json:"payer,omitempty"`
}

type GateConfig struct {
	PayTo   string
	Network string
	Asset   Asset
	// MaxTimeoutSeconds defaults to 60.
	MaxTimeoutSeconds int
}

// Gate blocks priced routes until a payment proof is verified and settled.
type Gate struct {
	verifier Verifier
	cfg      GateConfig
	logger   *slog.Logger
}

func NewGate(v Verifier, cfg GateConfig, logger *slog.Logger) *Gate {
	if cfg.MaxTimeoutSeconds <= 0 {
		cfg.MaxTimeoutSeconds = defaultMaxTimeoutSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{verifier: v, cfg: cfg, logger: logger}
}

// Require returns middleware charging price for the wrapped route. The handler
// runs once the payment is verified, with its response held back. Settlement
// happens when the handler calls Commit, or after it returns a status below 400.
// A handler answering 4xx or 5xx without committing is never charged.
func (g *Gate) Require(price Price, description string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := g.requirements(r, price, description)
			if err != nil {
				g.logger.Error("build payment requirements", "error", err, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment misconfigured"})
				return
			}

			header := r.Header.Get(HeaderPayment)
			if header == "" {
				writePaymentRequired(w, req, "X-PAYMENT header is required", "")
				return
			}

			payload, err := DecodePayload(header)
			if err != nil {
				writePaymentRequired(w, req, err.Error(), "")
				return
			}
			if payload.Scheme != req.Scheme || payload.Network != req.Network {
				writePaymentRequired(w, req,
					fmt.Sprintf("unsupported scheme/network %s/%s", payload.Scheme, payload.Network), "")
				return
			}

			ctx := r.Context()

			verified, err := g.verifier.Verify(ctx, payload, req)
			if err != nil {
				g.logUpstream("verify", r, err)
				writePaymentRequired(w, req, "payment verification failed", "")
				return
			}
			if !verified.IsValid {
				reason := verified.InvalidReason
				if reason == "" {
					reason = "invalid payment"
				}
				writePaymentRequired(w, req, reason, verified.Payer)
				return
			}

			var (
				settled   SettleResponse
				rejection string
			)
			pending := &settlement{settle: func() (Receipt, error) {
				var err error
				settled, rejection, err = g.settle(r, payload, req, price)
				if err != nil {
					return Receipt{}, err
				}

				payer := settled.Payer
				if payer == "" {
					payer = verified.Payer
				}

				return Receipt{Payer: payer, Transaction: settled.Transaction, Network: settled.Network}, nil
			}}

			buf := newBufferedResponse()
			next.ServeHTTP(buf, r.WithContext(withSettlement(ctx, pending)))

			if !pending.tried {
				if buf.statusCode() >= http.StatusBadRequest {
					g.logger.InfoContext(ctx, "handler rejected paid request, payment not settled",
						"path", r.URL.Path,
						"status", buf.statusCode(),
						"payer", verified.Payer,
					)
					buf.flushTo(w)
					return
				}

				_, _ = pending.commit()
			}

			if pending.err != nil {
				writePaymentRequired(w, req, rejection, verified.Payer)
				return
			}

			encoded, err := encodeSettlement(settled)
			if err == nil {
				buf.Header().Set(HeaderPaymentResponse, encoded)
			}

			buf.flushTo(w)
		})
	}
}

// settle charges a verified payment. On failure it also returns the message
// for the 402 body.
func (g *Gate) settle(r *http.Request, payload Payload, req Requirements, price Price) (SettleResponse, string, error) {
	ctx := r.Context()

	settled, err := g.verifier.Settle(ctx, payload, req)
	if err != nil {
		g.logUpstream("settle", r, err)
		return SettleResponse{}, "payment settlement failed", fmt.Errorf("%w: %w", ErrNotSettled, err)
	}
	if !settled.Success {
		reason := settled.ErrorReason
		if reason == "" {
			reason = "settlement rejected"
		}
		return SettleResponse{}, reason, fmt.Errorf("%w: %s", ErrNotSettled, reason)
	}

	g.logger.InfoContext(ctx, "payment settled",
		"path", r.URL.Path,
		"price", price.String(),
		"payer", settled.Payer,
		"transaction", settled.Transaction,
	)

	return settled, "", nil
}

func (g *Gate) requirements(r *http.Request, price Price, description string) (Requirements, error) {
	amount, err := price.AtomicAmount(g.cfg.Asset.Decimals)
	if err != nil {
		return Requirements{}, err
	}

	return Requirements{
		Scheme:            SchemeExact,
		Network:           g.cfg.Network,
		MaxAmountRequired: amount,
		Resource:          resourceURL(r),
		Description:       description,
		MimeType:          "application/json",
		PayTo:             g.cfg.PayTo,
		MaxTimeoutSeconds: g.cfg.MaxTimeoutSeconds,
		Asset:             g.cfg.Asset.Address,
		Extra: map[string]any{
			"name":    g.cfg.Asset.Name,
			"version": g.cfg.Asset.Version,
		},
	}, nil
}

func (g *Gate) logUpstream(op string, r *http.Request, err error) {
	attrs := []any{"op", op, "path", r.URL.Path, "error", err}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		attrs = append(attrs, "status", upErr.Status)
	}

	g.logger.ErrorContext(r.Context(), "facilitator call failed", attrs...)
}

func resourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	fwd, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	switch fwd = strings.ToLower(strings.TrimSpace(fwd)); fwd {
	case "http", "https":
		scheme = fwd
	}

	return scheme + "://" + r.Host + r.URL.Path
}

func writePaymentRequired(w http.ResponseWriter, req Requirements, msg, payer string) {
	writeJSON(w, http.StatusPaymentRequired, paymentRequiredResponse{
		X402Version: X402Version,
		Error:       msg,
		Accepts:     []Requirements{req},
		Payer:       payer,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
