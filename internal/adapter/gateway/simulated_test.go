package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/shopspring/decimal"
)

func TestSimulated_Charge(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	g := NewSimulated(Config{}, clock.NewManual(now))

	tests := []struct {
		name    string
		phone   string
		wantErr error
	}{
		{name: "approves regular number", phone: "0241234567"},
		{name: "declines fail marker", phone: "024fail567", wantErr: ErrDeclined},
		{name: "marker is case sensitive", phone: "FAIL-0000"},
		{name: "mixed case marker approved", phone: "+233Fail01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := g.Charge(context.Background(), interfaces.ChargeRequest{
				TransactionID: "MM-1", PhoneNumber: tc.phone, Provider: "MTN", Amount: decimal.NewFromInt(10),
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil {
				if !strings.HasPrefix(res.ExternalTransactionID, "EXT-") {
					t.Fatalf("unexpected external id %q", res.ExternalTransactionID)
				}
				if !res.ProcessedAt.Equal(now) {
					t.Fatalf("unexpected processed at %v", res.ProcessedAt)
				}
			}
		})
	}
}

func TestSimulated_ChargeHonoursContext(t *testing.T) {
	t.Parallel()
	g := NewSimulated(Config{ChargeDelay: time.Hour}, clock.NewSystem())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Charge(ctx, interfaces.ChargeRequest{PhoneNumber: "0241234567", Provider: "MTN"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSimulated_Verify(t *testing.T) {
	t.Parallel()
	g := NewSimulated(Config{}, clock.NewSystem())

	v, err := g.Verify(context.Background(), "MM-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.Status != "verified" || v.TransactionID != "MM-123" || !strings.HasPrefix(v.ProviderReference, "REF-") {
		t.Fatalf("unexpected verification %+v", v)
	}
}
