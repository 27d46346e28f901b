package payfast

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"quote-booking/internal/status"
	"quote-booking/models"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  "jt7NOE43FZPn",
		Sandbox:     true,
		ReturnURL:   "https://app.example.com/payment/return",
		CancelURL:   "https://app.example.com/payment/cancel",
		NotifyURL:   "https://api.example.com/api/v1/payment/notify",
	}
}

func testIntent() *models.PaymentIntent {
	return &models.PaymentIntent{
		Amount:    decimal.NewFromInt(1500),
		ItemName:  "Deposit for quote #42",
		Payer:     models.Payer{FirstName: "Thandi", LastName: "Nkosi", Email: "thandi@example.com"},
		PaymentID: "7",
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresMerchant(t *testing.T) {
	_, err := NewClient(&Config{MerchantID: "10000100"})
	assert.Error(t, err)
}

func TestNewClient_ModeSelectsURLs(t *testing.T) {
	live, err := NewClient(&Config{MerchantID: "1", MerchantKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, LiveProcessURL, live.processURL)
	assert.Equal(t, LiveValidateURL, live.validateURL)
	assert.False(t, live.Sandbox())

	sandbox := newTestClient(t)
	assert.Equal(t, SandboxProcessURL, sandbox.processURL)
	assert.True(t, sandbox.Sandbox())
}

func TestNewSession_GoldenRedirectURL(t *testing.T) {
	c := newTestClient(t)

	session, err := c.NewSession(testIntent())
	require.NoError(t, err)

	assert.Equal(t, "7ff40b14ebfadd7255ef564b891b01fd", session.Signature)
	assert.Equal(t, "7", session.PaymentID)

	g := goldie.New(t)
	g.Assert(t, "redirect_url", []byte(session.RedirectURL))
}

func TestNewSession_SignatureMatchesQuery(t *testing.T) {
	c := newTestClient(t)

	session, err := c.NewSession(testIntent())
	require.NoError(t, err)

	u, err := url.Parse(session.RedirectURL)
	require.NoError(t, err)
	ok, err := Verify(u.Query(), "jt7NOE43FZPn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1500.00", u.Query().Get("amount"))
}

func TestNewSession_RoundsAmount(t *testing.T) {
	c := newTestClient(t)
	intent := testIntent()
	intent.Amount = decimal.RequireFromString("99.999")

	session, err := c.NewSession(intent)

	require.NoError(t, err)
	assert.True(t, strings.Contains(session.RedirectURL, "amount=100.00&"))
}

func TestNewSession_OmitsEmptyOptionalFields(t *testing.T) {
	c := newTestClient(t)
	intent := testIntent()
	intent.Payer.LastName = ""

	session, err := c.NewSession(intent)

	require.NoError(t, err)
	assert.NotContains(t, session.RedirectURL, "name_last")
	assert.NotContains(t, session.RedirectURL, "item_description")
}

func TestNewSession_InvalidAmount(t *testing.T) {
	c := newTestClient(t)

	for _, amount := range []string{"0", "-10", "0.004"} {
		intent := testIntent()
		intent.Amount = decimal.RequireFromString(amount)

		_, err := c.NewSession(intent)

		var amountErr *status.InvalidAmountError
		assert.True(t, errors.As(err, &amountErr), amount)
	}
}

func TestNewSession_InvalidPayer(t *testing.T) {
	c := newTestClient(t)
	intent := testIntent()
	intent.Payer.Email = "  "

	_, err := c.NewSession(intent)

	var payerErr *status.InvalidPayerError
	require.True(t, errors.As(err, &payerErr))
	assert.Equal(t, "email", payerErr.Field)
}

func TestNewSession_MissingPaymentID(t *testing.T) {
	c := newTestClient(t)
	intent := testIntent()
	intent.PaymentID = ""

	_, err := c.NewSession(intent)

	assert.ErrorIs(t, err, ErrMissingPaymentID)
}
