package http

import (
	"net/http"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	service interfaces.PaymentService
	logger  logger.Logger
}

func NewPaymentHandler(service interfaces.PaymentService, logger logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// Amounts arrive as JSON numbers or strings; decimal accepts both.
type cashPaymentRequest struct {
	OrderID        string           `json:"orderId"`
	AmountReceived *decimal.Decimal `json:"amountReceived"`
	Notes          *string          `json:"notes"`
}

type mobilePaymentRequest struct {
	OrderID     string `json:"orderId"`
	PhoneNumber string `json:"phoneNumber"`
	Provider    string `json:"provider"`
}

type paymentListResponse struct {
	Payments []*domain.Payment `json:"payments"`
	Count    int               `json:"count"`
}

func (h *PaymentHandler) PayCash(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req cashPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.AmountReceived == nil {
		respondError(w, r, h.logger, domain.Errorf(domain.CodeInvalidInput, "amountReceived is required"))
		return
	}

	result, err := h.service.PayCash(r.Context(), actor, interfaces.CashPaymentCommand{
		OrderID:        req.OrderID,
		AmountReceived: *req.AmountReceived,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) PayMobileMoney(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req mobilePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	payment, err := h.service.PayMobileMoney(r.Context(), actor, interfaces.MobilePaymentCommand{
		OrderID:     req.OrderID,
		PhoneNumber: req.PhoneNumber,
		Provider:    req.Provider,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	v, err := h.service.VerifyMobileMoney(r.Context(), actor, r.PathValue("transactionId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	p, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	filter, err := paymentFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	payments, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	writeJSON(w, http.StatusOK, paymentListResponse{Payments: payments, Count: len(payments)})
}
