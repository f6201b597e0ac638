package broadcast

import (
	"context"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const publishTimeout = 5 * time.Second

// StaffRoles receive every order lifecycle event.
var StaffRoles = []domain.Role{domain.RoleKitchen, domain.RoleStaff, domain.RoleAdmin}

// Broadcaster fans events out to order and role channels. Delivery is best effort:
// a failed publish is logged and counted, never returned.
type Broadcaster struct {
	publisher interfaces.EventPublisher
	metrics   interfaces.Metrics
	logger    logger.Logger
}

func New(publisher interfaces.EventPublisher, metrics interfaces.Metrics, logger logger.Logger) *Broadcaster {
	return &Broadcaster{publisher: publisher, metrics: metrics, logger: logger}
}

func (b *Broadcaster) Emit(ctx context.Context, event domain.Event, payload any, channels ...string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, ch := range channels {
		err := b.publisher.Publish(pubCtx, ch, event, payload)
		b.metrics.EventPublished(event, err == nil)
		if err != nil {
			b.logger.Error("event_publish_failed", "Failed to publish event", logger.RequestID(ctx),
				map[string]interface{}{"event": event, "channel": ch}, err)
			continue
		}
		b.logger.Debug("event_published", "Event published", logger.RequestID(ctx),
			map[string]interface{}{"event": event, "channel": ch})
	}
}

// RoleChannels maps roles to their channels.
func RoleChannels(roles ...domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = domain.RoleChannel(r)
	}
	return out
}
