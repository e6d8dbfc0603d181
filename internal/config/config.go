package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fastprodman/arcadegate/internal/payment"
)

// ErrInvalidConfig marks settings the process refuses to start with.
var ErrInvalidConfig = errors.New("invalid configuration")

// PlaceholderAddress is the sample value shipped in example env files.
const PlaceholderAddress = "0x_YOUR_WALLET_ADDRESS_HERE"

type PostgresConfig struct {
	DSN             string        `envconfig:"PG_DSN"`
	MaxOpenConns    int           `envconfig:"PG_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `envconfig:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

func (pc PostgresConfig) Enabled() bool {
	return strings.TrimSpace(pc.DSN) != ""
}

type PaymentConfig struct {
	FacilitatorURL     string        `envconfig:"FACILITATOR_URL" default:"https://x402.org/facilitator"`
	FacilitatorTimeout time.Duration `envconfig:"FACILITATOR_TIMEOUT" default:"15s"`
	Address            string        `envconfig:"ADDRESS"`
	Network            string        `envconfig:"NETWORK" default:"base-sepolia"`
	Asset              string        `envconfig:"PAYMENT_ASSET"`
	GamePrice          payment.Price `envconfig:"GAME_PRICE" default:"0.001"`
	ContinuePrice      payment.Price `envconfig:"CONTINUE_PRICE" default:"1.00"`
	DepositPrice       payment.Price `envconfig:"DEPOSIT_PRICE" default:"1.00"`
}

// Validate reports every problem that would make the payment gate unusable.
func (pc PaymentConfig) Validate() error {
	var errs []error

	addr := strings.TrimSpace(pc.Address)
	switch {
	case addr == "":
		errs = append(errs, fmt.Errorf("%w: ADDRESS is not set", ErrInvalidConfig))
	case addr == PlaceholderAddress:
		errs = append(errs, fmt.Errorf("%w: ADDRESS is still the placeholder", ErrInvalidConfig))
	}

	if strings.TrimSpace(pc.FacilitatorURL) == "" {
		errs = append(errs, fmt.Errorf("%w: FACILITATOR_URL is empty", ErrInvalidConfig))
	}

	asset, assetErr := pc.PaymentAsset()
	if assetErr != nil {
		errs = append(errs, assetErr)
	}

	for name, p := range map[string]payment.Price{
		"GAME_PRICE":     pc.GamePrice,
		"CONTINUE_PRICE": pc.ContinuePrice,
		"DEPOSIT_PRICE":  pc.DepositPrice,
	} {
		if p.IsZero() {
			errs = append(errs, fmt.Errorf("%w: %s is not set", ErrInvalidConfig, name))
			continue
		}
		if assetErr != nil {
			continue
		}

		_, err := p.AtomicAmount(asset.Decimals)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err))
		}
	}

	if !pc.GamePrice.IsZero() && pc.DepositCredits() < 1 {
		errs = append(errs, fmt.Errorf("%w: DEPOSIT_PRICE %s buys no games at GAME_PRICE %s",
			ErrInvalidConfig, pc.DepositPrice, pc.GamePrice))
	}

	return errors.Join(errs...)
}

// PaymentAsset resolves the settlement token, honoring PAYMENT_ASSET.
func (pc PaymentConfig) PaymentAsset() (payment.Asset, error) {
	asset, ok := payment.USDC(pc.Network)
	if pc.Asset != "" {
		if !ok {
			asset = payment.Asset{Name: "USD Coin", Version: "2", Decimals: 6}
		}
		asset.Address = pc.Asset

		return asset, nil
	}
	if !ok {
		return payment.Asset{}, fmt.Errorf("%w: no known USDC asset for NETWORK %q; set PAYMENT_ASSET",
			ErrInvalidConfig, pc.Network)
	}

	return asset, nil
}

// DepositCredits is how many games one deposit buys, floored.
func (pc PaymentConfig) DepositCredits() int {
	return int(pc.DepositPrice.UnitsOf(pc.GamePrice))
}

type PatreonConfig struct {
	ClientID     string `envconfig:"PATREON_CLIENT_ID"`
	ClientSecret string `envconfig:"PATREON_CLIENT_SECRET"`
	RedirectURI  string `envconfig:"PATREON_REDIRECT_URI"`
}
