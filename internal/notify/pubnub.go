package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote-booking/models"

	pubnub "github.com/pubnub/go/v7"
)

type PubNubConfig struct {
	PublishKey   string `json:"pn_pubkey" mapstructure:"pn_pubkey"`
	SubscribeKey string `json:"pn_subkey" mapstructure:"pn_subkey"`
	SecretKey    string `json:"pn_secret" mapstructure:"pn_secret"`
	CipherKey    string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
	UUID         string `json:"pn_uuid" mapstructure:"pn_uuid"`
}

// PubNubNotifier sends each event to the client's own channel, user-<clientID>.
type PubNubNotifier struct {
	publish func(channel string, message map[string]any) error
}

func NewPubNub(cfg *PubNubConfig) (*PubNubNotifier, error) {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil, errors.New("pubnub: publish and subscribe keys are required")
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UUID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pnCfg.CipherKey = cfg.CipherKey
	pn := pubnub.NewPubNub(pnCfg)

	return &PubNubNotifier{
		publish: func(channel string, message map[string]any) error {
			_, _, err := pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
	}, nil
}

func (n *PubNubNotifier) Publish(_ context.Context, event *models.BookingEvent) error {
	if event.ClientID == "" {
		return nil
	}

	channel := fmt.Sprintf("user-%s", event.ClientID)
	message := map[string]any{
		"type":        event.Type,
		"quote_id":    event.QuoteID,
		"deposit_id":  event.DepositID,
		"amount":      event.Amount,
		"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339),
	}
	if err := n.publish(channel, message); err != nil {
		return fmt.Errorf("pubnub: publish to %s: %w", channel, err)
	}
	return nil
}
