package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case PaymentCash, PaymentMobileMoney:
		return m, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch st := PaymentStatus(s); st {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return st, true
	}
	return "", false
}

// Payment settles one order. It is created once and reaches a terminal status once.
type Payment struct {
	ID                    string          `json:"id"`
	OrderID               string          `json:"orderId"`
	Method                PaymentMethod   `json:"method"`
	Status                PaymentStatus   `json:"status"`
	Amount                decimal.Decimal `json:"amount"`
	TransactionID         string          `json:"transactionId"`
	ExternalTransactionID *string         `json:"externalTransactionId,omitempty"`
	PhoneNumber           *string         `json:"phoneNumber,omitempty"`
	Provider              *string         `json:"provider,omitempty"`
	FailureReason         *string         `json:"failureReason,omitempty"`
	Notes                 *string         `json:"notes,omitempty"`
	ProcessedBy           string          `json:"processedBy"`
	CompletedAt           *time.Time      `json:"completedAt,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

func transactionID(prefix, orderID string, now time.Time) string {
	suffix := orderID
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), strings.ToUpper(suffix))
}

// NewCashPayment returns a completed cash payment for the full order total.
func NewCashPayment(order *Order, processedBy string, notes *string, now time.Time) *Payment {
	return &Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		Method:        PaymentCash,
		Status:        PaymentCompleted,
		Amount:        order.TotalAmount,
		TransactionID: transactionID("CASH", order.ID, now),
		Notes:         notes,
		ProcessedBy:   processedBy,
		CompletedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewMobilePayment returns a pending mobile-money payment awaiting the provider.
func NewMobilePayment(order *Order, phone, provider, processedBy string, now time.Time) *Payment {
	return &Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		Method:        PaymentMobileMoney,
		Status:        PaymentPending,
		Amount:        order.TotalAmount,
		TransactionID: transactionID("MM", order.ID, now),
		PhoneNumber:   &phone,
		Provider:      &provider,
		ProcessedBy:   processedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Complete settles a pending payment.
func (p *Payment) Complete(externalID string, now time.Time) error {
	if p.Status != PaymentPending {
		return Errorf(CodeConflict, "payment %s is already %s", p.TransactionID, p.Status)
	}
	p.Status = PaymentCompleted
	if externalID != "" {
		p.ExternalTransactionID = &externalID
	}
	p.CompletedAt = &now
	p.UpdatedAt = now
	return nil
}

// Fail marks a pending payment as failed with reason.
func (p *Payment) Fail(reason string, now time.Time) error {
	if p.Status != PaymentPending {
		return Errorf(CodeConflict, "payment %s is already %s", p.TransactionID, p.Status)
	}
	p.Status = PaymentFailed
	p.FailureReason = &reason
	p.UpdatedAt = now
	return nil
}

// CashChange returns the change owed for tendered, or InsufficientPayment.
func CashChange(total, tendered decimal.Decimal) (decimal.Decimal, error) {
	if tendered.LessThan(total) {
		return decimal.Zero, Errorf(CodeInsufficientPayment,
			"insufficient payment amount: received %s, required %s", tendered.StringFixed(2), total.StringFixed(2))
	}
	return tendered.Sub(total), nil
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	CustomerID string
	Status     *PaymentStatus
	Method     *PaymentMethod
	Limit      int
	Offset     int
}

// Verification is what a provider reports about a transaction.
type Verification struct {
	TransactionID     string        `json:"transactionId"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	Status            string        `json:"status"`
	ProviderReference string        `json:"providerReference"`
	Timestamp         time.Time     `json:"timestamp"`
}
