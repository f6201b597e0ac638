package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeKind = "topic"

// RoutingKey maps a channel name ("order:<id>", "role:KITCHEN") to its topic routing key.
func RoutingKey(channel string) string {
	return strings.ReplaceAll(channel, ":", ".")
}

type publisher struct {
	conn     Connection
	exchange string
	clock    clock.Clock
}

func NewPublisher(conn Connection, exchange string, clk clock.Clock) interfaces.EventPublisher {
	return &publisher{conn: conn, exchange: exchange, clock: clk}
}

func (p *publisher) Publish(ctx context.Context, channel string, event domain.Event, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	body, err := json.Marshal(domain.Envelope{
		Channel:   channel,
		Event:     event,
		Payload:   raw,
		Timestamp: p.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(p.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.exchange, RoutingKey(channel), false, false, amqp.Publishing{
		ContentType: "application/json",
		Type:        string(event),
		Timestamp:   p.clock.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event, channel, err)
	}
	return nil
}
