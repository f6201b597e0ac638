package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type OrderHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type createOrderRequest struct {
	Items []struct {
		MenuItemID          string  `json:"menuItemId"`
		Quantity            int     `json:"quantity"`
		SpecialInstructions *string `json:"specialInstructions"`
	} `json:"items"`
	SpecialInstructions *string `json:"specialInstructions"`
}

type updateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

type cancelOrderRequest struct {
	Reason *string `json:"reason"`
}

type orderListResponse struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

type historyResponse struct {
	OrderID string              `json:"orderId"`
	History []*domain.StatusLog `json:"history"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	cmd := interfaces.CreateOrderCommand{SpecialInstructions: req.SpecialInstructions}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, domain.LineRequest{
			MenuItemID:          it.MenuItemID,
			Quantity:            it.Quantity,
			SpecialInstructions: it.SpecialInstructions,
		})
	}

	order, err := h.service.Create(r.Context(), actor, cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	filter, err := orderFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	orders, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders, Count: len(orders)})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	order, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id := r.PathValue("id")

	logs, err := h.service.History(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*domain.StatusLog{}
	}
	writeJSON(w, http.StatusOK, historyResponse{OrderID: id, History: logs})
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), actor, interfaces.UpdateStatusCommand{
		OrderID: r.PathValue("id"),
		Status:  req.Status,
		Notes:   req.Notes,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	// The reason is optional, so an empty body is accepted.
	var req cancelOrderRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, h.logger, err)
		return
	}

	order, err := h.service.Cancel(r.Context(), actor, interfaces.CancelOrderCommand{
		OrderID: r.PathValue("id"),
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
