package handlers

import (
	"net/http"

	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/pkg/response"

	"github.com/shopspring/decimal"
)

type statusPayload struct {
	Status string `json:"status"`
}

type discountPayload struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

func (h *Handler) KitchenBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Kitchen.ActiveBoard(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, board)
}

func (h *Handler) KitchenUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body statusPayload
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Kitchen.UpdateStatus(r.Context(), middleware.ActorFrom(r.Context()), orderID, body.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) KitchenEditItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body services.KitchenEditInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Kitchen.EditItems(r.Context(), middleware.ActorFrom(r.Context()), orderID, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) KitchenDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body discountPayload
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Kitchen.ApplyDiscount(r.Context(), middleware.ActorFrom(r.Context()), orderID, body.DiscountPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) KitchenSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Kitchen.ActiveSessions(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, sessions)
}
