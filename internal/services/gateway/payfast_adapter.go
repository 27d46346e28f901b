package gateway

import (
	"context"
	"fmt"
	"net/url"

	"quote-booking/internal/services/gateway/payfast"
	"quote-booking/models"
)

// PayFastAdapter wraps the PayFast client to conform to Gateway
type PayFastAdapter struct {
	client *payfast.Client
}

// NewPayFastAdapter creates a new PayFast adapter
func NewPayFastAdapter(config *payfast.Config) (*PayFastAdapter, error) {
	client, err := payfast.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create PayFast client: %w", err)
	}

	return &PayFastAdapter{
		client: client,
	}, nil
}

func (p *PayFastAdapter) GetProvider() Provider {
	if p.client.Sandbox() {
		return ProviderPayFastSandbox
	}
	return ProviderPayFast
}

func (p *PayFastAdapter) NewSession(intent *models.PaymentIntent) (*models.PaymentSession, error) {
	return p.client.NewSession(intent)
}

func (p *PayFastAdapter) VerifyNotification(form url.Values) (*models.GatewayNotification, error) {
	return p.client.VerifyNotification(form)
}

func (p *PayFastAdapter) ValidateNotification(ctx context.Context, form url.Values) error {
	return p.client.ValidateNotification(ctx, form)
}
