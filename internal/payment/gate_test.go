package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, p Payload, req Requirements) (VerifyResponse, error) {
	args := m.Called(ctx, p, req)
	return args.Get(0).(VerifyResponse), args.Error(1)
}

func (m *mockVerifier) Settle(ctx context.Context, p Payload, req Requirements) (SettleResponse, error) {
	args := m.Called(ctx, p, req)
	return args.Get(0).(SettleResponse), args.Error(1)
}

type gateFixture struct {
	verifier *mockVerifier
	handler  http.Handler
	called   bool
	receipt  Receipt
	// status is what the wrapped handler answers when it skips Commit.
	status int
	// commit makes the wrapped handler settle before answering.
	commit bool
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	asset, ok := USDC("base-sepolia")
	require.True(t, ok)

	fx := &gateFixture{verifier: new(mockVerifier), commit: true}
	gate := NewGate(fx.verifier, GateConfig{
		PayTo:   "0xpayto",
		Network: "base-sepolia",
		Asset:   asset,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	fx.handler = gate.Require(MustPrice("0.001"), "game session")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fx.called = true
			if !fx.commit {
				w.WriteHeader(fx.status)
				_, _ = w.Write([]byte(`{"handled":true}`))
				return
			}

			rcpt, err := Commit(r.Context())
			if err != nil {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			fx.receipt = rcpt
			w.WriteHeader(http.StatusOK)
		}))

	return fx
}

func (fx *gateFixture) do(t *testing.T, header string) (*httptest.ResponseRecorder, paymentRequiredResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://arcade.test/api/game/session", nil)
	if header != "" {
		req.Header.Set(HeaderPayment, header)
	}

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	var body paymentRequiredResponse
	if rec.Code == http.StatusPaymentRequired {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec, body
}

func validHeader(t *testing.T) string {
	t.Helper()

	h, err := EncodePayload(testPayload())
	require.NoError(t, err)
	return h
}

func TestGate_MissingHeader(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)

	rec, body := fx.do(t, "")

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, fx.called)
	assert.Equal(t, X402Version, body.X402Version)
	assert.Equal(t, "X-PAYMENT header is required", body.Error)
	require.Len(t, body.Accepts, 1)

	req := body.Accepts[0]
	assert.Equal(t, SchemeExact, req.Scheme)
	assert.Equal(t, "base-sepolia", req.Network)
	assert.Equal(t, "1000", req.MaxAmountRequired)
	assert.Equal(t, "http://arcade.test/api/game/session", req.Resource)
	assert.Equal(t, "0xpayto", req.PayTo)
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", req.Asset)
	assert.Equal(t, 60, req.MaxTimeoutSeconds)
	assert.Equal(t, "USDC", req.Extra["name"])

	fx.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestGate_MalformedHeader(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)

	rec, body := fx.do(t, "!!!")

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, fx.called)
	assert.Contains(t, body.Error, "malformed payment header")
}

func TestGate_NetworkMismatch(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)

	p := testPayload()
	p.Network = "base"
	h, err := EncodePayload(p)
	require.NoError(t, err)

	rec, body := fx.do(t, h)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, fx.called)
	assert.Contains(t, body.Error, "unsupported scheme/network")
}

func TestGate_InvalidPayment(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)
	fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Return(VerifyResponse{IsValid: false, InvalidReason: "insufficient_funds", Payer: "0xpayer"}, nil)

	rec, body := fx.do(t, validHeader(t))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, fx.called)
	assert.Equal(t, "insufficient_funds", body.Error)
	assert.Equal(t, "0xpayer", body.Payer)
	fx.verifier.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything)
}

func TestGate_VerifyUpstreamError(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)
	fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Return(VerifyResponse{}, &UpstreamError{Op: "verify", Status: http.StatusServiceUnavailable})

	rec, body := fx.do(t, validHeader(t))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, fx.called)
	assert.Equal(t, "payment verification failed", body.Error)
}

func TestGate_SettleFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		settle  SettleResponse
		err     error
		wantMsg string
	}{
		{name: "rejected", settle: SettleResponse{ErrorReason: "nonce_used"}, wantMsg: "nonce_used"},
		{name: "transport", err: errors.New("dial tcp: refused"), wantMsg: "payment settlement failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newGateFixture(t)
			fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
				Return(VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil)
			fx.verifier.On("Settle", mock.Anything, mock.Anything, mock.Anything).
				Return(tt.settle, tt.err)

			rec, body := fx.do(t, validHeader(t))

			assert.Equal(t, http.StatusPaymentRequired, rec.Code)
			assert.True(t, fx.called)
			assert.Zero(t, fx.receipt)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Empty(t, rec.Header().Get(HeaderPaymentResponse))
		})
	}
}

func TestGate_SettledPaymentReachesHandler(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)
	fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.MatchedBy(func(r Requirements) bool {
		return r.MaxAmountRequired == "1000" && r.PayTo == "0xpayto"
	})).Return(VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil).Once()
	fx.verifier.On("Settle", mock.Anything, mock.Anything, mock.Anything).
		Return(SettleResponse{Success: true, Transaction: "0xtx", Network: "base-sepolia"}, nil).Once()

	rec, _ := fx.do(t, validHeader(t))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fx.called)
	assert.Equal(t, Receipt{Payer: "0xpayer", Transaction: "0xtx", Network: "base-sepolia"}, fx.receipt)

	raw, err := base64.StdEncoding.DecodeString(rec.Header().Get(HeaderPaymentResponse))
	require.NoError(t, err)

	var settled SettleResponse
	require.NoError(t, json.Unmarshal(raw, &settled))
	assert.Equal(t, "0xtx", settled.Transaction)

	fx.verifier.AssertExpectations(t)
}

func TestGate_PriceBelowPrecision(t *testing.T) {
	t.Parallel()

	asset, _ := USDC("base")
	gate := NewGate(new(mockVerifier), GateConfig{PayTo: "0x1", Network: "base", Asset: asset}, nil)

	h := gate.Require(MustPrice("0.0000001"), "too cheap")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/deposit", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGate_HandlerRejectionIsNotCharged(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			fx := newGateFixture(t)
			fx.commit = false
			fx.status = status
			fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
				Return(VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil)

			rec, _ := fx.do(t, validHeader(t))

			assert.Equal(t, status, rec.Code)
			assert.JSONEq(t, `{"handled":true}`, rec.Body.String())
			assert.Empty(t, rec.Header().Get(HeaderPaymentResponse))
			fx.verifier.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGate_SettlesAfterSuccessfulHandler(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)
	fx.commit = false
	fx.status = http.StatusCreated
	fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Return(VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil)
	fx.verifier.On("Settle", mock.Anything, mock.Anything, mock.Anything).
		Return(SettleResponse{Success: true, Transaction: "0xlate"}, nil).Once()

	rec, _ := fx.do(t, validHeader(t))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"handled":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderPaymentResponse))
	fx.verifier.AssertExpectations(t)
}

func TestGate_LateSettleFailureHidesHandlerResponse(t *testing.T) {
	t.Parallel()

	fx := newGateFixture(t)
	fx.commit = false
	fx.status = http.StatusOK
	fx.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Return(VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil)
	fx.verifier.On("Settle", mock.Anything, mock.Anything, mock.Anything).
		Return(SettleResponse{ErrorReason: "insufficient_funds"}, nil)

	rec, body := fx.do(t, validHeader(t))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_funds", body.Error)
	assert.NotContains(t, rec.Body.String(), "handled")
}

func TestCommit_WithoutGate(t *testing.T) {
	t.Parallel()

	_, err := Commit(context.Background())
	require.ErrorIs(t, err, ErrNotSettled)

	_, ok := ReceiptFromContext(context.Background())
	assert.False(t, ok)
}

func TestCommit_SettlesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	ctx := withSettlement(context.Background(), &settlement{settle: func() (Receipt, error) {
		calls++
		return Receipt{Transaction: "0xtx"}, nil
	}})

	_, ok := ReceiptFromContext(ctx)
	assert.False(t, ok)

	first, err := Commit(ctx)
	require.NoError(t, err)
	second, err := Commit(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	got, ok := ReceiptFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "0xtx", got.Transaction)
}

func TestResourceURL_ForwardedProto(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: "http://arcade.test/api/deposit"},
		{header: "https", want: "https://arcade.test/api/deposit"},
		{header: "HTTPS, http", want: "https://arcade.test/api/deposit"},
		{header: "javascript", want: "http://arcade.test/api/deposit"},
		{header: "evil://x", want: "http://arcade.test/api/deposit"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "http://arcade.test/api/deposit", nil)
			if tt.header != "" {
				r.Header.Set("X-Forwarded-Proto", tt.header)
			}

			assert.Equal(t, tt.want, resourceURL(r))
		})
	}
}

func TestReceipt_PaymentID(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Receipt{Payer: "0x1"}.PaymentID())

	id := Receipt{Transaction: "0xtx"}.PaymentID()
	require.NotNil(t, id)
	assert.Equal(t, "0xtx", *id)
}
