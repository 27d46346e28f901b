package payfast

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quote-booking/internal/status"
	"quote-booking/models"
	"quote-booking/utils"
)

const (
	LiveProcessURL     = "https://www.payfast.co.za/eng/process"
	SandboxProcessURL  = "https://sandbox.payfast.co.za/eng/process"
	LiveValidateURL    = "https://www.payfast.co.za/eng/query/validate"
	SandboxValidateURL = "https://sandbox.payfast.co.za/eng/query/validate"
)

var ErrMissingPaymentID = errors.New("payfast: payment id is required")

type Config struct {
	MerchantID  string `json:"merchantId" mapstructure:"merchant_id"`
	MerchantKey string `json:"merchantKey" mapstructure:"merchant_key"`
	Passphrase  string `json:"passphrase" mapstructure:"passphrase"`
	Sandbox     bool   `json:"sandbox" mapstructure:"sandbox"`

	// ProcessURL and ValidateURL override the defaults picked by Sandbox.
	ProcessURL  string `json:"processUrl" mapstructure:"process_url"`
	ValidateURL string `json:"validateUrl" mapstructure:"validate_url"`

	ReturnURL string `json:"returnUrl" mapstructure:"return_url"`
	CancelURL string `json:"cancelUrl" mapstructure:"cancel_url"`
	NotifyURL string `json:"notifyUrl" mapstructure:"notify_url"`

	ValidateTimeout time.Duration `json:"validateTimeout" mapstructure:"validate_timeout"`
}

type Client struct {
	// merchantID and merchantKey identify the merchant account.
	merchantID  string
	merchantKey string

	// passphrase is appended to every signature when set.
	passphrase string

	sandbox bool

	processURL  string
	validateURL string

	returnURL string
	cancelURL string
	notifyURL string

	// breaker guards the validate endpoint.
	breaker *utils.CircuitBreaker

	hc *http.Client
}

// NewClient creates a gateway client. It performs no I/O.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.MerchantID == "" || cfg.MerchantKey == "" {
		return nil, errors.New("payfast: merchant id and key are required")
	}

	processURL, validateURL := LiveProcessURL, LiveValidateURL
	if cfg.Sandbox {
		processURL, validateURL = SandboxProcessURL, SandboxValidateURL
	}
	if cfg.ProcessURL != "" {
		processURL = cfg.ProcessURL
	}
	if cfg.ValidateURL != "" {
		validateURL = cfg.ValidateURL
	}
	if _, err := url.Parse(processURL); err != nil {
		return nil, fmt.Errorf("payfast: process url: %w", err)
	}

	timeout := cfg.ValidateTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	name := "payfast"
	if cfg.Sandbox {
		name = "payfast-sandbox"
	}

	return &Client{
		merchantID:  cfg.MerchantID,
		merchantKey: cfg.MerchantKey,
		passphrase:  cfg.Passphrase,
		sandbox:     cfg.Sandbox,
		processURL:  processURL,
		validateURL: validateURL,
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
		notifyURL:   cfg.NotifyURL,
		breaker:     utils.NewCircuitBreaker(name + "-validate"),
		hc: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// RedirectParams is the closed set of fields sent to the process endpoint.
type RedirectParams struct {
	MerchantID      string
	MerchantKey     string
	ReturnURL       string
	CancelURL       string
	NotifyURL       string
	NameFirst       string
	NameLast        string
	EmailAddress    string
	PaymentID       string
	Amount          string
	ItemName        string
	ItemDescription string
}

// Values returns the non-empty parameters keyed by their wire names.
func (p RedirectParams) Values() map[string]string {
	out := make(map[string]string, 12)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("merchant_id", p.MerchantID)
	set("merchant_key", p.MerchantKey)
	set("return_url", p.ReturnURL)
	set("cancel_url", p.CancelURL)
	set("notify_url", p.NotifyURL)
	set("name_first", p.NameFirst)
	set("name_last", p.NameLast)
	set("email_address", p.EmailAddress)
	set("m_payment_id", p.PaymentID)
	set("amount", p.Amount)
	set("item_name", p.ItemName)
	set("item_description", p.ItemDescription)
	return out
}

// Params validates intent and builds the redirect parameters for it.
func (c *Client) Params(intent *models.PaymentIntent) (RedirectParams, error) {
	amount := intent.Amount.Round(2)
	if !amount.IsPositive() {
		return RedirectParams{}, &status.InvalidAmountError{Amount: intent.Amount.String()}
	}
	if strings.TrimSpace(intent.Payer.Email) == "" {
		return RedirectParams{}, &status.InvalidPayerError{Field: "email"}
	}
	if intent.PaymentID == "" {
		return RedirectParams{}, ErrMissingPaymentID
	}

	return RedirectParams{
		MerchantID:      c.merchantID,
		MerchantKey:     c.merchantKey,
		ReturnURL:       c.returnURL,
		CancelURL:       c.cancelURL,
		NotifyURL:       c.notifyURL,
		NameFirst:       intent.Payer.FirstName,
		NameLast:        intent.Payer.LastName,
		EmailAddress:    strings.TrimSpace(intent.Payer.Email),
		PaymentID:       intent.PaymentID,
		Amount:          amount.StringFixed(2),
		ItemName:        intent.ItemName,
		ItemDescription: intent.ItemDescription,
	}, nil
}

// NewSession builds the signed redirect URL for intent. Only PaymentID,
// RedirectURL and Signature are filled on the returned session.
func (c *Client) NewSession(intent *models.PaymentIntent) (*models.PaymentSession, error) {
	params, err := c.Params(intent)
	if err != nil {
		return nil, err
	}

	values := params.Values()
	canonical, err := Canonicalize(values)
	if err != nil {
		return nil, fmt.Errorf("payfast: %w", err)
	}
	signature := digest(canonical, c.passphrase)

	return &models.PaymentSession{
		PaymentID:   intent.PaymentID,
		RedirectURL: c.processURL + "?" + canonical + "&" + SignatureField + "=" + signature,
		Signature:   signature,
	}, nil
}

func (c *Client) MerchantID() string {
	return c.merchantID
}

func (c *Client) Sandbox() bool {
	return c.sandbox
}
