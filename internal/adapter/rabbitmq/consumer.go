package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const defaultReconnectDelay = 5 * time.Second

type consumer struct {
	conn           Connection
	exchange       string
	prefetch       int
	reconnectDelay time.Duration
	logger         logger.Logger
}

func NewConsumer(conn Connection, exchange string, prefetch int, logger logger.Logger) interfaces.EventConsumer {
	return &consumer{
		conn:           conn,
		exchange:       exchange,
		prefetch:       prefetch,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger,
	}
}

// Consume subscribes to channels (domain.ValidSubscription; "role:*" binds every role channel,
// none means every channel) and hands each envelope to handler until ctx is done, re-subscribing after drops.
func (c *consumer) Consume(ctx context.Context, channels []string, handler interfaces.EnvelopeHandler) error {
	keys := bindingKeys(channels)
	for {
		err := c.consume(ctx, keys, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		c.logger.Error("consumer_disconnected", "Event consumer disconnected, reconnecting", "",
			map[string]interface{}{"retry_in": c.reconnectDelay.String()}, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *consumer) consume(ctx context.Context, keys []string, handler interfaces.EnvelopeHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := ch.ExchangeDeclare(c.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// private queue, removed by the broker when this subscriber goes away
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer_started", "Subscribed to events", "", map[string]interface{}{
		"exchange": c.exchange,
		"bindings": keys,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return errors.New("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("messages channel closed")
			}

			var env domain.Envelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				c.logger.Error("message_parse_failed", "Failed to parse event envelope", "",
					map[string]interface{}{"routing_key": msg.RoutingKey}, err)
				_ = msg.Nack(false, false)
				continue
			}
			if err := handler(ctx, env); err != nil {
				c.logger.Error("event_handle_failed", "Event handler failed", "",
					map[string]interface{}{"event": env.Event, "channel": env.Channel}, err)
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func bindingKeys(channels []string) []string {
	if len(channels) == 0 {
		return []string{"#"}
	}
	keys := make([]string, 0, len(channels))
	for _, ch := range channels {
		keys = append(keys, RoutingKey(ch))
	}
	return keys
}
