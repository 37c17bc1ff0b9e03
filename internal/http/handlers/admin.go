package handlers

import (
	"net/http"
	"strings"
	"time"

	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/pkg/response"
)

type availabilityPayload struct {
	Available *bool `json:"available"`
}

func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var body services.CreateUserInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.Users.CreateUser(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, user)
}

func (h *Handler) AdminMenuCreate(w http.ResponseWriter, r *http.Request) {
	var body services.MenuItemInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.Menu.CreateItem(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, item)
}

func (h *Handler) AdminMenuUpdate(w http.ResponseWriter, r *http.Request) {
	itemID, err := readPathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body services.MenuItemInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.Menu.UpdateItem(r.Context(), middleware.ActorFrom(r.Context()), itemID, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, item)
}

func (h *Handler) AdminMenuAvailability(w http.ResponseWriter, r *http.Request) {
	itemID, err := readPathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body availabilityPayload
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Available == nil {
		h.writeError(w, r, domain.ValidationError("available is required", map[string]any{"field": "available"}))
		return
	}
	item, err := h.Menu.SetAvailability(r.Context(), middleware.ActorFrom(r.Context()), itemID, *body.Available)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, item)
}

func (h *Handler) AdminMenuImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := readPathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, readErr := readImageBytes(r, "file", h.Config.MaxFileSizeBytes)
	if readErr != nil {
		h.writeError(w, r, domain.ValidationError(readErr.Message, map[string]any{"reason": string(readErr.Kind)}))
		return
	}
	item, err := h.Menu.UploadImage(r.Context(), middleware.ActorFrom(r.Context()), itemID, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, item)
}

func (h *Handler) AdminCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var body services.CategoryInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	category, err := h.Menu.CreateCategory(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, category)
}

func (h *Handler) AdminSpecialCreate(w http.ResponseWriter, r *http.Request) {
	var body services.SpecialInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	special, err := h.Menu.CreateSpecial(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, special)
}

func (h *Handler) AdminAnnouncementCreate(w http.ResponseWriter, r *http.Request) {
	var body services.AnnouncementInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	announcement, err := h.Menu.CreateAnnouncement(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, announcement)
}

// AdminDashboard takes optional from/to bounds as dates (restaurant timezone) or RFC3339.
// A date in "to" is inclusive of that whole day.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	loc := h.Config.Location()
	from, err := parseBound(r.URL.Query().Get("from"), loc, false)
	if err != nil {
		h.writeError(w, r, domain.ValidationError("from must be YYYY-MM-DD or RFC3339", map[string]any{"field": "from"}))
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"), loc, true)
	if err != nil {
		h.writeError(w, r, domain.ValidationError("to must be YYYY-MM-DD or RFC3339", map[string]any{"field": "to"}))
		return
	}
	dashboard, err := h.Analytics.Dashboard(r.Context(), middleware.ActorFrom(r.Context()), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, dashboard)
}

func parseBound(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if day, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		if endOfDay {
			return day.AddDate(0, 0, 1), nil
		}
		return day, nil
	}
	return time.Parse(time.RFC3339, raw)
}
