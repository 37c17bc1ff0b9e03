package handlers

import (
	"net/http"

	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/pkg/response"
)

func (h *Handler) SessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, err := readPathUUID(r, "sessionId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.Sessions.Get(r.Context(), middleware.ActorFrom(r.Context()), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, summary)
}

func (h *Handler) SessionActive(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Sessions.ActiveForUser(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, summary)
}

func (h *Handler) SessionRequestBill(w http.ResponseWriter, r *http.Request) {
	sessionID, err := readPathUUID(r, "sessionId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Sessions.RequestBill(r.Context(), middleware.ActorFrom(r.Context()), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, result)
}
