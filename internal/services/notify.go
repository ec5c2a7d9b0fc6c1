package services

import (
	"context"
	"time"

	"cashless/internal/events"
	"cashless/internal/money"
	"cashless/internal/websocket"

	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Notifier fans committed changes out to sockets and the event bus. Nothing
// it does can fail the operation that triggered it.
type Notifier struct {
	hub       BalanceHub
	publisher events.Publisher
	log       zerolog.Logger
}

func NewNotifier(hub BalanceHub, publisher events.Publisher, log zerolog.Logger) Notifier {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return Notifier{hub: hub, publisher: publisher, log: log}
}

func (n Notifier) balance(accountID string, balance int64, reason, reference string) {
	if n.hub == nil || accountID == "" {
		return
	}
	n.hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID:    accountID,
		Balance:      money.FormatMinor(balance),
		BalanceMinor: balance,
		Reason:       reason,
		Reference:    reference,
	})
}

func (n Notifier) publish(ctx context.Context, routingKey string, body any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.publisher.Publish(ctx, routingKey, body); err != nil {
		n.log.Warn().Err(err).Str("routing_key", routingKey).Msg("event publish failed")
	}
}
