// Package patreon is the OAuth bridge to Patreon: authorize URL, code and
// refresh-token exchange, and identity lookup. It stores nothing.
package patreon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	AuthURL     = "https://www.patreon.com/oauth2/authorize"
	TokenURL    = "https://www.patreon.com/api/oauth2/token"
	IdentityURL = "https://www.patreon.com/api/oauth2/v2/identity?include=email"

	maxProfileBody = 1 << 20
)

var Scopes = []string{"identity", "identity[email]"}

// Token mirrors Patreon's token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// UpstreamError is a non-2xx answer from Patreon.
type UpstreamError struct {
	Op     string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("patreon %s: status %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	Profile(ctx context.Context, accessToken string) (json.RawMessage, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Endpoint overrides; empty means the Patreon production URLs.
	AuthURL     string
	TokenURL    string
	IdentityURL string
}

var _ IdentityProvider = (*Client)(nil)

type Client struct {
	oauth       *oauth2.Config
	identityURL string
	httpClient  *http.Client
}

// New builds a Client. A nil httpClient gets a 15s timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.AuthURL, AuthURL),
				TokenURL:  orDefault(cfg.TokenURL, TokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		identityURL: orDefault(cfg.IdentityURL, IdentityURL),
		httpClient:  httpClient,
	}
}

func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, upstream("exchange code", err)
	}

	return fromOAuth(tok), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	// An empty access token forces the source to hit the token endpoint.
	src := c.oauth.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, upstream("refresh token", err)
	}

	return fromOAuth(tok), nil
}

func (c *Client) Profile(ctx context.Context, accessToken string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "fetch identity", Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("identity response is not JSON")
	}

	return body, nil
}

func (c *Client) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func upstream(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		return &UpstreamError{Op: op, Status: rErr.Response.StatusCode}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func fromOAuth(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		out.ExpiresIn = int64(v)
	case json.Number:
		out.ExpiresIn, _ = v.Int64()
	case string:
		out.ExpiresIn, _ = strconv.ParseInt(v, 10, 64)
	default:
		if !tok.Expiry.IsZero() {
			out.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
		}
	}

	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
