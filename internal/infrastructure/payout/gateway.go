// Package payout is a thin client for the external merchant payout
// gateway that settles earnings withdrawals, authenticating the same way
// the teacher's auth gateway provider authenticates to its OIDC provider:
// an OAuth2 client-credentials grant.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/aidocs/platform/internal/config"
)

// ErrGatewayNotConfigured is returned when no gateway credentials are set;
// callers fall back to a locally-generated payout reference in that case.
var ErrGatewayNotConfigured = errors.New("merchant gateway is not configured")

// Gateway requests payouts against the external merchant gateway.
type Gateway struct {
	httpClient *http.Client
	payoutURL  string
	available  bool
}

// NewGateway constructs a Gateway from configuration. When the gateway's
// token URL is unset, the Gateway reports unavailable and CreatePayout
// always returns ErrGatewayNotConfigured.
func NewGateway(cfg config.AuthConfig) *Gateway {
	if cfg.MerchantGatewayTokenURL == "" {
		return &Gateway{available: false}
	}
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.MerchantGatewayClientID,
		ClientSecret: cfg.MerchantGatewayClientSecret,
		TokenURL:     cfg.MerchantGatewayTokenURL,
	}
	return &Gateway{
		httpClient: oauthCfg.Client(context.Background()),
		payoutURL:  cfg.MerchantGatewayPayoutURL,
		available:  true,
	}
}

type payoutRequest struct {
	AccountID   string `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
}

type payoutResponse struct {
	PayoutRef string `json:"payout_reference"`
}

// CreatePayout submits a payout request for accountID and returns the
// gateway's reference ID for it.
func (g *Gateway) CreatePayout(ctx context.Context, accountID string, amount int64) (string, error) {
	if !g.available {
		return "", ErrGatewayNotConfigured
	}

	body, err := json.Marshal(payoutRequest{AccountID: accountID, AmountCents: amount})
	if err != nil {
		return "", fmt.Errorf("encode payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.payoutURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call merchant gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("merchant gateway returned status %d", resp.StatusCode)
	}

	var out payoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode payout response: %w", err)
	}
	return out.PayoutRef, nil
}

// IsAvailable reports whether the gateway is configured.
func (g *Gateway) IsAvailable() bool {
	return g.available
}
