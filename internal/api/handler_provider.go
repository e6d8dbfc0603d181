package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastprodman/arcadegate/internal/payment"
	"github.com/fastprodman/arcadegate/internal/patreon"
	"github.com/fastprodman/arcadegate/internal/services/ledger"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Prices are what each gated route charges.
type Prices struct {
	Game     payment.Price
	Continue payment.Price
	Deposit  payment.Price
}

// Deps is everything the HTTP layer needs. The ledger is owned by the caller.
type Deps struct {
	Ledger   *ledger.Service
	Gate     *payment.Gate
	Identity patreon.IdentityProvider
	Prices   Prices

	PayTo          string
	Network        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// HandlerProvider wraps the ledger and identity bridge and exposes HTTP handlers.
type HandlerProvider struct {
	ledger   *ledger.Service
	identity patreon.IdentityProvider
	prices   Prices
	payTo    string
	network  string
	logger   *slog.Logger
}

// NewHandler returns a new Handler provider.
func NewHandler(d Deps) *HandlerProvider {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HandlerProvider{
		ledger:   d.Ledger,
		identity: d.Identity,
		prices:   d.Prices,
		payTo:    d.PayTo,
		network:  d.Network,
		logger:   logger,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a capped JSON body into dst. An empty body leaves dst zero.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

type creditSessionRequest struct {
	DepositID string `json:"depositId"`
}

type continueRequest struct {
	Score json.RawMessage `json:"score"`
}

type scoreRequest struct {
	SessionID string          `json:"sessionId"`
	Score     json.RawMessage `json:"score"`
}

type leaderboardEntry struct {
	Rank   int    `json:"rank"`
	Score  int    `json:"score"`
	Player string `json:"player"`
}

var staticLeaderboard = []leaderboardEntry{
	{Rank: 1, Score: 42, Player: "0x1234...5678"},
	{Rank: 2, Score: 38, Player: "0xabcd...efgh"},
	{Rank: 3, Score: 35, Player: "0x9876...5432"},
}

// --- Handlers ---

// HealthHandler handles GET /api/health
func (h *HandlerProvider) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"payTo":          h.payTo,
		"network":        h.network,
		"gamePrice":      h.prices.Game.String(),
		"depositCredits": h.ledger.DepositCredits(),
	})
}

// TestHandler handles GET /api/test and echoes request headers for debugging.
func (h *HandlerProvider) TestHandler(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Server is working!",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"headers":   headers,
	})
}

// CreateDepositHandler handles POST /api/deposit (gated). Paid handlers
// commit the payment before writing any state.
func (h *HandlerProvider) CreateDepositHandler(w http.ResponseWriter, r *http.Request) {
	rcpt, err := payment.Commit(r.Context())
	if err != nil {
		writeError(w, http.StatusPaymentRequired, "payment not settled")
		return
	}

	d, err := h.ledger.CreateDeposit(r.Context(), rcpt.PaymentID())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create deposit", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"depositId": d.ID,
		"credits":   d.Credits,
	})
}

// GetDepositHandler handles GET /api/deposit/{depositId}
func (h *HandlerProvider) GetDepositHandler(w http.ResponseWriter, r *http.Request) {
	depositID := chi.URLParam(r, "depositId")

	d, err := h.ledger.GetDeposit(r.Context(), depositID)
	if err != nil {
		if errors.Is(err, ledger.ErrDepositNotFound) {
			writeError(w, http.StatusNotFound, "Deposit not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"depositId": d.ID,
		"credits":   d.Credits,
	})
}

// CreateSessionHandler handles POST /api/game/session (gated)
func (h *HandlerProvider) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	rcpt, err := payment.Commit(r.Context())
	if err != nil {
		writeError(w, http.StatusPaymentRequired, "payment not settled")
		return
	}

	sess, err := h.ledger.CreateSession(r.Context(), rcpt.PaymentID())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"message":   "Payment accepted! Press SPACE to start your game.",
	})
}

// CreateCreditSessionHandler handles POST /api/game/session/credit
func (h *HandlerProvider) CreateCreditSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req creditSessionRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, remaining, err := h.ledger.CreateSessionFromCredit(r.Context(), req.DepositID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoCreditsAvailable) {
			writeError(w, http.StatusBadRequest, "No credits available")
			return
		}

		h.logger.ErrorContext(r.Context(), "create credit session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":        sess.ID,
		"creditsRemaining": remaining,
	})
}

// ValidateSessionHandler handles GET /api/game/session/{sessionId}
func (h *HandlerProvider) ValidateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	status, err := h.ledger.ValidateSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"valid": false, "message": "Session not found"})
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if status.Used {
		writeJSON(w, http.StatusGone, map[string]any{"valid": false, "message": "Game already played"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     status.Valid,
		"sessionId": status.SessionID,
		"used":      status.Used,
	})
}

// ContinueHandler handles POST /api/game/continue (gated)
func (h *HandlerProvider) ContinueHandler(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	score, err := ledger.ParseScore(req.Score)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid score")
		return
	}

	rcpt, err := payment.Commit(r.Context())
	if err != nil {
		writeError(w, http.StatusPaymentRequired, "payment not settled")
		return
	}

	sess, err := h.ledger.CreateContinueSession(r.Context(), score, rcpt.PaymentID())
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidScore) {
			writeError(w, http.StatusBadRequest, "Invalid score")
			return
		}

		h.logger.ErrorContext(r.Context(), "create continue session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":     sess.ID,
		"message":       "Pay to win activated! Your score has been restored. 🎉",
		"continueScore": score,
	})
}

// SubmitScoreHandler handles POST /api/game/score
func (h *HandlerProvider) SubmitScoreHandler(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := h.ledger.RedeemSession(r.Context(), req.SessionID, req.Score)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrSessionNotFound):
			writeError(w, http.StatusUnauthorized, "Invalid session")
			return
		case errors.Is(err, ledger.ErrAlreadyUsed):
			writeError(w, http.StatusUnauthorized, "Game already completed")
			return
		default:
			h.logger.ErrorContext(r.Context(), "redeem session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"score":   rec.Value,
		"message": "Game over! Insert coin to play again.",
	})
}

// LeaderboardHandler handles GET /api/leaderboard
func (h *HandlerProvider) LeaderboardHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": staticLeaderboard})
}
