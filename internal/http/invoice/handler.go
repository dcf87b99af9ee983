package invoice

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onliner/medibill/internal/inbox"
	"github.com/onliner/medibill/internal/invoice"
	"github.com/onliner/medibill/internal/notify"
)

type Handler struct {
	svc       *invoice.Service
	projector *inbox.Projector
	notifier  notify.Dispatcher
}

func NewHandler(svc *invoice.Service, projector *inbox.Projector, notifier notify.Dispatcher) *Handler {
	return &Handler{svc: svc, projector: projector, notifier: notifier}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.issue)
	r.Get("/inbox", h.inbox)
	r.Get("/unread-count", h.unreadCount)
	r.Get("/{id}", h.get)
	r.Get("/{id}/chain", h.chain)
	r.Post("/{id}/revise", h.revise)
	r.Post("/{id}/remind", h.remind)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var raw invoice.RawInvoice
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Issue(r.Context(), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) chain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.svc.Chain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(chain))
}

type reviseRequest struct {
	LineItems    []invoice.RawLineItem `json:"lineItems"`
	RevisionNote string                `json:"revisionNote"`
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.svc.ReviseFrom(r.Context(), chi.URLParam(r, "id"), req.LineItems, req.RevisionNote)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) remind(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.notifier.NotifyInvoiceReminder(r.Context(), inv.ID, inv.VendorName)

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	filters := inbox.Filters{
		VendorCode: r.URL.Query().Get("vendor"),
		Search:     r.URL.Query().Get("q"),
	}

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "from must be a YYYY-MM-DD date", http.StatusBadRequest)
			return
		}

		filters.From = &t
	}

	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "to must be a YYYY-MM-DD date", http.StatusBadRequest)
			return
		}

		filters.To = &t
	}

	entries, err := h.projector.View(r.Context(), filters)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toInboxResponse(entries))
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.projector.UnreadCount(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		http.Error(w, "invoice not found", http.StatusNotFound)
	case errors.Is(err, invoice.ErrDuplicate):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, invoice.ErrValidation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
