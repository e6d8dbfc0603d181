package api

import (
	"net/http"

	"github.com/fastprodman/arcadegate/internal/infra/logging"
	"github.com/fastprodman/arcadegate/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter constructs a chi router with all API endpoints registered.
// Priced routes sit behind the payment gate.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", payment.HeaderPayment},
		ExposedHeaders:   []string{payment.HeaderPaymentResponse},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)
		r.Get("/test", h.TestHandler)

		r.With(d.Gate.Require(d.Prices.Deposit, "Deposit credits for arcade games")).
			Post("/deposit", h.CreateDepositHandler)
		r.Get("/deposit/{depositId}", h.GetDepositHandler)

		r.With(d.Gate.Require(d.Prices.Game, "One arcade game")).
			Post("/game/session", h.CreateSessionHandler)
		r.Post("/game/session/credit", h.CreateCreditSessionHandler)
		r.Get("/game/session/{sessionId}", h.ValidateSessionHandler)

		r.With(d.Gate.Require(d.Prices.Continue, "Continue with your score restored")).
			Post("/game/continue", h.ContinueHandler)
		r.Post("/game/score", h.SubmitScoreHandler)
		r.Get("/leaderboard", h.LeaderboardHandler)

		r.Route("/auth/patreon", func(r chi.Router) {
			r.Get("/login", h.PatreonLoginHandler)
			r.Get("/callback", h.PatreonCallbackHandler)
			r.Post("/refresh", h.PatreonRefreshHandler)
		})
	})

	return r
}
