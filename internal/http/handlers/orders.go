package handlers

import (
	"net/http"

	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/pkg/response"
)

// OrderCreate accepts a bearer actor or, for guests without one, a session id plus the
// guest session token in the body.
func (h *Handler) OrderCreate(w http.ResponseWriter, r *http.Request) {
	var body services.CreateOrderInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Orders.CreateOrder(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, order)
}

func (h *Handler) OrdersMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListMine(r.Context(), middleware.ActorFrom(r.Context()), readQueryInt(r, "limit", 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, orders)
}

func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Orders.Get(r.Context(), middleware.ActorFrom(r.Context()), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}

func (h *Handler) OrderCustomerEdit(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body services.CustomerEditInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Orders.CustomerEdit(r.Context(), middleware.ActorFrom(r.Context()), orderID, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, order)
}
