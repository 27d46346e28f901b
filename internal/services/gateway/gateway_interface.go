package gateway

import (
	"context"
	"net/url"

	"quote-booking/models"
)

// Provider names a configured payment gateway.
type Provider string

const (
	ProviderPayFast        Provider = "payfast"
	ProviderPayFastSandbox Provider = "payfast_sandbox"
)

// Gateway defines the common interface for hosted-page payment providers
type Gateway interface {
	// GetProvider returns the provider type
	GetProvider() Provider

	// NewSession builds the signed redirect for a payment intent. It does no I/O.
	NewSession(intent *models.PaymentIntent) (*models.PaymentSession, error)

	// VerifyNotification checks and decodes a server-to-server notification
	VerifyNotification(form url.Values) (*models.GatewayNotification, error)

	// ValidateNotification confirms a notification with the provider
	ValidateNotification(ctx context.Context, form url.Values) error
}

// GatewayFactory creates gateway instances based on provider type
type GatewayFactory interface {
	CreateGateway(ctx context.Context, provider Provider, config interface{}) (Gateway, error)
	GetSupportedProviders() []Provider
}
