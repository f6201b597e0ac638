package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
)

// EventHandler backs the event-subscriber mode: it prints one line per event for the
// canteen display and logs the envelope.
type EventHandler struct {
	out    io.Writer
	logger logger.Logger
}

func NewEventHandler(out io.Writer, logger logger.Logger) *EventHandler {
	return &EventHandler{out: out, logger: logger}
}

// orderView picks the fields shared by every payload that carries an order.
type orderView struct {
	ID     string        `json:"id"`
	Number string        `json:"orderNumber"`
	Status domain.Status `json:"status"`
	Order  *orderView    `json:"order"`
}

func (h *EventHandler) Handle(ctx context.Context, env domain.Envelope) error {
	if !domain.ValidChannel(env.Channel) {
		return fmt.Errorf("unknown channel %q", env.Channel)
	}

	var view orderView
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, &view); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
	}
	if view.Order != nil {
		view = *view.Order
	}

	h.logger.Debug("event_received", fmt.Sprintf("Received %s on %s", env.Event, env.Channel),
		logger.RequestID(ctx), map[string]interface{}{
			"event":        env.Event,
			"channel":      env.Channel,
			"order_number": view.Number,
			"status":       view.Status,
		})

	line := fmt.Sprintf("[%s] %s on %s", env.Timestamp.Format("15:04:05"), env.Event, env.Channel)
	if view.Number != "" {
		line += fmt.Sprintf(": order %s is %s", view.Number, view.Status)
	}
	_, err := fmt.Fprintln(h.out, line)
	return err
}
