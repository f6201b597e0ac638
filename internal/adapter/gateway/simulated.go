package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/google/uuid"
)

// ErrDeclined is returned when the provider refuses a charge.
var ErrDeclined = errors.New("mobile money payment declined by provider")

// FailMarker in a phone number makes the simulated provider decline the charge.
const FailMarker = "fail"

type Config struct {
	ChargeDelay time.Duration
	VerifyDelay time.Duration
}

// Simulated stands in for a mobile-money provider: every call waits a fixed delay and only
// phone numbers containing FailMarker are declined.
type Simulated struct {
	cfg   Config
	clock clock.Clock
}

func NewSimulated(cfg Config, clk clock.Clock) interfaces.PaymentGateway {
	return &Simulated{cfg: cfg, clock: clk}
}

func (g *Simulated) Charge(ctx context.Context, req interfaces.ChargeRequest) (interfaces.ChargeResult, error) {
	if err := wait(ctx, g.cfg.ChargeDelay); err != nil {
		return interfaces.ChargeResult{}, fmt.Errorf("provider %s: %w", req.Provider, err)
	}
	if strings.Contains(req.PhoneNumber, FailMarker) {
		return interfaces.ChargeResult{}, ErrDeclined
	}
	return interfaces.ChargeResult{
		ExternalTransactionID: "EXT-" + strings.ToUpper(uuid.NewString()[:12]),
		ProcessedAt:           g.clock.Now(),
	}, nil
}

func (g *Simulated) Verify(ctx context.Context, transactionID string) (domain.Verification, error) {
	if err := wait(ctx, g.cfg.VerifyDelay); err != nil {
		return domain.Verification{}, err
	}
	return domain.Verification{
		TransactionID:     transactionID,
		Status:            "verified",
		ProviderReference: "REF-" + strings.ToUpper(uuid.NewString()[:12]),
		Timestamp:         g.clock.Now(),
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
