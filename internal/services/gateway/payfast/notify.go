package payfast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"quote-booking/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("payfast: notification signature mismatch")
	ErrMerchantMismatch = errors.New("payfast: notification for another merchant")
	ErrNotValidated     = errors.New("payfast: notification rejected by gateway")
)

// VerifyNotification checks the merchant id and signature of a notification
// form and decodes it.
func (c *Client) VerifyNotification(form url.Values) (*models.GatewayNotification, error) {
	if form.Get("merchant_id") != c.merchantID {
		return nil, ErrMerchantMismatch
	}

	ok, err := Verify(form, c.passphrase)
	if err != nil {
		return nil, fmt.Errorf("payfast: verify notification: %w", err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	paymentID := form.Get("m_payment_id")
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}

	amount, err := decimal.NewFromString(form.Get("amount_gross"))
	if err != nil {
		return nil, fmt.Errorf("payfast: amount_gross: %w", err)
	}

	return &models.GatewayNotification{
		PaymentID:        paymentID,
		GatewayPaymentID: form.Get("pf_payment_id"),
		Status:           strings.ToUpper(form.Get("payment_status")),
		AmountGross:      amount,
		MerchantID:       form.Get("merchant_id"),
	}, nil
}

// ValidateNotification posts the notification back to the gateway and
// expects "VALID". Calls go through the client's circuit breaker.
func (c *Client) ValidateNotification(ctx context.Context, form url.Values) error {
	var valid bool
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		valid, err = c.validate(ctx, form)
		return err
	})
	if err != nil {
		return err
	}
	if !valid {
		return ErrNotValidated
	}
	return nil
}

func (c *Client) validate(ctx context.Context, form url.Values) (bool, error) {
	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.validateURL, strings.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("validate: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("validate: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("validate: resp.StatusCode: %d", resp.StatusCode)
	}

	reply, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return false, fmt.Errorf("validate: read body: %w", err)
	}
	return strings.TrimSpace(string(reply)) == "VALID", nil
}
