package http

import (
	"net/http"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type QueueHandler struct {
	service interfaces.QueueService
	logger  logger.Logger
}

func NewQueueHandler(service interfaces.QueueService, logger logger.Logger) *QueueHandler {
	return &QueueHandler{service: service, logger: logger}
}

func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	snap, err := h.service.Status(r.Context(), limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
	pos, err := h.service.Position(r.Context(), r.PathValue("orderId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *QueueHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Reap(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if res.OrderIDs == nil {
		res.OrderIDs = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}
