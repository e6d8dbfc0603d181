package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fastprodman/arcadegate/internal/repos/deposits"
	memdeposits "github.com/fastprodman/arcadegate/internal/repos/deposits/memory"
	"github.com/fastprodman/arcadegate/internal/repos/scores"
	"github.com/fastprodman/arcadegate/internal/repos/scores/logsink"
	"github.com/fastprodman/arcadegate/internal/repos/sessions"
	memsessions "github.com/fastprodman/arcadegate/internal/repos/sessions/memory"
	"github.com/google/uuid"
)

const recordTimeout = 5 * time.Second

// Service owns the session and deposit records for one process. Handlers get
// it by reference; tests build their own.
type Service struct {
	sessions       sessions.Sessions
	deposits       deposits.Deposits
	scores         scores.Recorder
	depositCredits int
	logger         *slog.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

func WithRecorder(r scores.Recorder) Option {
	return func(s *Service) { s.scores = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID source; tests use it to force collisions.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func WithRepos(ss sessions.Sessions, ds deposits.Deposits) Option {
	return func(s *Service) {
		s.sessions = ss
		s.deposits = ds
	}
}

// New returns a Service over fresh in-memory repositories. Each deposit is
// worth depositCredits sessions; values below 1 fall back to DefaultDepositCredits.
func New(depositCredits int, opts ...Option) *Service {
	if depositCredits < 1 {
		depositCredits = DefaultDepositCredits
	}

	s := &Service{
		sessions:       memsessions.New(),
		deposits:       memdeposits.New(),
		depositCredits: depositCredits,
		logger:         slog.Default(),
		now:            time.Now,
		newID:          uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.scores == nil {
		s.scores = logsink.New(s.logger)
	}

	return s
}

func (s *Service) DepositCredits() int {
	return s.depositCredits
}

// CreateSession opens a paid session. The payment gate has already run.
func (s *Service) CreateSession(ctx context.Context, paymentID *string) (sessions.Session, error) {
	sess, err := s.insertSession(sessions.OriginPaid, paymentID, nil)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.DebugContext(ctx, "session created", "session_id", sess.ID, "origin", sess.Origin)

	return sess, nil
}

// CreateSessionFromCredit spends one credit of depositID on a new session and
// returns the session with the credits left.
func (s *Service) CreateSessionFromCredit(ctx context.Context, depositID string) (sessions.Session, int, error) {
	remaining, err := s.deposits.SpendCredit(depositID)
	if err != nil {
		return sessions.Session{}, 0, fmt.Errorf("spend credit: %w", err)
	}

	sess, err := s.insertSession(sessions.OriginCredit, nil, nil)
	if err != nil {
		return sessions.Session{}, 0, fmt.Errorf("create credit session: %w", err)
	}

	s.logger.DebugContext(ctx, "session created",
		"session_id", sess.ID,
		"origin", sess.Origin,
		"deposit_id", depositID,
		"credits_remaining", remaining,
	)

	return sess, remaining, nil
}

// CreateContinueSession opens a session that resumes from score.
func (s *Service) CreateContinueSession(ctx context.Context, score float64, paymentID *string) (sessions.Session, error) {
	if !validScore(score) {
		return sessions.Session{}, fmt.Errorf("continue from %v: %w", score, ErrInvalidScore)
	}

	sess, err := s.insertSession(sessions.OriginContinue, paymentID, &score)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("create continue session: %w", err)
	}

	s.logger.DebugContext(ctx, "session created",
		"session_id", sess.ID,
		"origin", sess.Origin,
		"continue_score", score,
	)

	return sess, nil
}

func (s *Service) ValidateSession(_ context.Context, sessionID string) (SessionStatus, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("validate session: %w", err)
	}

	return SessionStatus{
		SessionID: sess.ID,
		Valid:     !sess.Used,
		Used:      sess.Used,
	}, nil
}

// RedeemSession ends the game for sessionID and records score.
//
// The session stays used even when recording fails; that failure is logged
// and the redeemed score is still returned.
func (s *Service) RedeemSession(ctx context.Context, sessionID string, score json.RawMessage) (scores.Score, error) {
	sess, err := s.sessions.MarkUsed(sessionID)
	if err != nil {
		return scores.Score{}, fmt.Errorf("redeem session: %w", err)
	}

	rec := scores.Score{
		SessionID:     sess.ID,
		Value:         score,
		ContinueScore: sess.ContinueScore,
		RecordedAt:    s.now().UTC(),
	}

	// The session is already spent, so a client hanging up must not abort the write.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	err = s.scores.Record(recCtx, rec)
	if err != nil {
		s.logger.ErrorContext(ctx, "record score failed",
			"session_id", sess.ID,
			"error", err,
		)
	}

	return rec, nil
}

func (s *Service) CreateDeposit(ctx context.Context, paymentID *string) (deposits.Deposit, error) {
	var d deposits.Deposit

	err := s.withFreshID(func(id string) error {
		d = deposits.Deposit{
			ID:        id,
			Credits:   s.depositCredits,
			CreatedAt: s.now().UTC(),
			PaymentID: paymentID,
		}
		return s.deposits.Insert(d)
	}, deposits.ErrDuplicateID)
	if err != nil {
		return deposits.Deposit{}, fmt.Errorf("create deposit: %w", err)
	}

	s.logger.DebugContext(ctx, "deposit created", "deposit_id", d.ID, "credits", d.Credits)

	return d, nil
}

func (s *Service) GetDeposit(_ context.Context, depositID string) (deposits.Deposit, error) {
	d, err := s.deposits.Get(depositID)
	if err != nil {
		return deposits.Deposit{}, fmt.Errorf("get deposit: %w", err)
	}

	return d, nil
}

// ParseScore reads a continue score from raw JSON. Anything other than a
// finite, non-negative number is ErrInvalidScore.
func ParseScore(raw json.RawMessage) (float64, error) {
	var v any
	err := json.Unmarshal(raw, &v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}

	f, ok := v.(float64)
	if !ok || !validScore(f) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidScore, string(raw))
	}

	return f, nil
}

func validScore(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func (s *Service) insertSession(origin sessions.Origin, paymentID *string, continueScore *float64) (sessions.Session, error) {
	var sess sessions.Session

	err := s.withFreshID(func(id string) error {
		sess = sessions.Session{
			ID:            id,
			CreatedAt:     s.now().UTC(),
			Origin:        origin,
			PaymentID:     paymentID,
			ContinueScore: continueScore,
		}
		return s.sessions.Insert(sess)
	}, sessions.ErrDuplicateID)

	return sess, err
}

const maxIDAttempts = 3

// withFreshID retries insert with a new id while it reports dupErr.
func (s *Service) withFreshID(insert func(id string) error, dupErr error) error {
	var err error
	for range maxIDAttempts {
		err = insert(s.newID())
		if err == nil {
			return nil
		}
		if !errors.Is(err, dupErr) {
			return err
		}
	}

	return err
}
