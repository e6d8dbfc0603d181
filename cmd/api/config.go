package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/arcadegate/internal/config"
)

type apiConfig struct {
	Port            uint16        `envconfig:"PORT" default:"3001"`
	LogLevel        slog.Level    `envconfig:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	Payment config.PaymentConfig
	Patreon config.PatreonConfig
	Scores  config.PostgresConfig
}

func (c *apiConfig) Validate() error {
	return c.Payment.Validate()
}
