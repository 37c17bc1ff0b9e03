package handlers

import (
	"net/http"
	"strconv"

	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/services"
	"aicavalli-order-service/pkg/response"
)

// BillGenerate answers 201 for a new bill and 200 when the scope was already billed.
func (h *Handler) BillGenerate(w http.ResponseWriter, r *http.Request) {
	var body services.GenerateBillInput
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Billing.Generate(r.Context(), middleware.ActorFrom(r.Context()), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.AlreadyBilled {
		response.Success(w, result)
		return
	}
	response.Created(w, result)
}

func (h *Handler) BillDetail(w http.ResponseWriter, r *http.Request) {
	billID, err := readPathUUID(r, "billId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bill, err := h.Billing.Get(r.Context(), middleware.ActorFrom(r.Context()), billID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, bill)
}

func (h *Handler) BillList(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Billing.List(r.Context(), middleware.ActorFrom(r.Context()), readQueryInt(r, "limit", 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, bills)
}

// BillPrint renders the receipt. format=html or format=text returns the markup itself
// for the print window instead of the JSON envelope.
func (h *Handler) BillPrint(w http.ResponseWriter, r *http.Request) {
	billID, err := readPathUUID(r, "billId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Billing.Print(r.Context(), middleware.ActorFrom(r.Context()), billID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result.HTML))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result.Text))
	default:
		response.Success(w, result)
	}
}

func (h *Handler) BillReceiptPDF(w http.ResponseWriter, r *http.Request) {
	billID, err := readPathUUID(r, "billId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pdf, filename, err := h.Billing.ReceiptPDF(r.Context(), middleware.ActorFrom(r.Context()), billID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
