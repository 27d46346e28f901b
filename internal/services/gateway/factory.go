package gateway

import (
	"context"
	"fmt"
	"sort"

	"quote-booking/internal/services/gateway/payfast"
)

// Factory implements GatewayFactory
type Factory struct{}

// NewFactory creates a new gateway factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateGateway creates a gateway based on provider type and configuration.
// The provider decides the mode; the Sandbox flag on config is overwritten.
func (f *Factory) CreateGateway(_ context.Context, provider Provider, config interface{}) (Gateway, error) {
	cfg, ok := config.(*payfast.Config)
	if !ok {
		return nil, fmt.Errorf("invalid %s config type, expected *payfast.Config", provider)
	}

	switch provider {
	case ProviderPayFast:
		c := *cfg
		c.Sandbox = false
		return NewPayFastAdapter(&c)

	case ProviderPayFastSandbox:
		c := *cfg
		c.Sandbox = true
		return NewPayFastAdapter(&c)

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", provider)
	}
}

// GetSupportedProviders returns list of supported gateway providers
func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{
		ProviderPayFast,
		ProviderPayFastSandbox,
	}
}

// Registry manages configured gateway instances
type Registry struct {
	gateways map[Provider]Gateway
	factory  GatewayFactory
	primary  Provider
}

// NewRegistry creates a new gateway registry
func NewRegistry(factory GatewayFactory) *Registry {
	return &Registry{
		gateways: make(map[Provider]Gateway),
		factory:  factory,
	}
}

// Register creates and registers a gateway. The first one becomes primary.
func (r *Registry) Register(ctx context.Context, provider Provider, config interface{}) error {
	gw, err := r.factory.CreateGateway(ctx, provider, config)
	if err != nil {
		return fmt.Errorf("failed to create %s gateway: %w", provider, err)
	}

	r.gateways[provider] = gw

	if r.primary == "" {
		r.primary = provider
	}

	return nil
}

// Get returns a gateway by provider
func (r *Registry) Get(provider Provider) (Gateway, error) {
	gw, exists := r.gateways[provider]
	if !exists {
		return nil, fmt.Errorf("gateway provider %s not registered", provider)
	}
	return gw, nil
}

// Primary returns the primary gateway
func (r *Registry) Primary() (Gateway, error) {
	if r.primary == "" {
		return nil, fmt.Errorf("no primary gateway configured")
	}
	return r.Get(r.primary)
}

// SetPrimary sets the primary gateway provider
func (r *Registry) SetPrimary(provider Provider) error {
	if _, exists := r.gateways[provider]; !exists {
		return fmt.Errorf("gateway provider %s not registered", provider)
	}
	r.primary = provider
	return nil
}

// Available returns the registered providers in name order
func (r *Registry) Available() []Provider {
	providers := make([]Provider, 0, len(r.gateways))
	for provider := range r.gateways {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}
