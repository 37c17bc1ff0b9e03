package handlers

import (
	"net/http"

	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/pkg/response"
)

func (h *Handler) GuestCheckIn(w http.ResponseWriter, r *http.Request) {
	var body services.CheckInInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Sessions.CheckIn(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.Resumed {
		response.Success(w, result)
		return
	}
	response.Created(w, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body services.LoginInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Users.Login(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, result)
}
