package handlers

import (
	"net/http"
	"strconv"

	"aicavalli-order-service/pkg/response"
)

func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := true
	if raw := r.URL.Query().Get("available"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			onlyAvailable = parsed
		}
	}
	view, err := h.Menu.PublicMenu(r.Context(), onlyAvailable)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, view)
}

func (h *Handler) PublicSpecials(w http.ResponseWriter, r *http.Request) {
	specials, err := h.Menu.TodaySpecials(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, specials)
}

func (h *Handler) PublicAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.Menu.Announcements(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, list)
}
