package broadcast

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type logPublisher struct {
	logger logger.Logger
}

// NewLogPublisher writes every event to the log instead of a broker.
func NewLogPublisher(l logger.Logger) interfaces.EventPublisher {
	return &logPublisher{logger: l}
}

func (p *logPublisher) Publish(ctx context.Context, channel string, event domain.Event, payload any) error {
	p.logger.Info("event_logged", fmt.Sprintf("%s on %s", event, channel), logger.RequestID(ctx), map[string]interface{}{
		"event":   event,
		"channel": channel,
		"payload": payload,
	})
	return nil
}
