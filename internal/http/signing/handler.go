package signing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onliner/medibill/internal/http/auth"
	"github.com/onliner/medibill/internal/invoice"
	"github.com/onliner/medibill/internal/signature"
	"github.com/onliner/medibill/internal/status"
)

type Handler struct {
	svc    *invoice.Service
	ledger *status.Ledger
	vault  *signature.Vault
}

func NewHandler(svc *invoice.Service, ledger *status.Ledger, vault *signature.Vault) *Handler {
	return &Handler{svc: svc, ledger: ledger, vault: vault}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/signature", h.sign)
	r.Get("/{id}/signature", h.getSignature)
	r.Delete("/{id}/signature", h.deleteSignature)
	r.Post("/confirm", h.confirm)
	r.Post("/dispute", h.dispute)
}

// signRequest carries the signature image plus the client-side descriptors
// the server cannot observe itself.
type signRequest struct {
	SignatureData    string `json:"signatureData"`
	Platform         string `json:"platform"`
	Language         string `json:"language"`
	Timezone         string `json:"timezone"`
	ScreenResolution string `json:"screenResolution"`
	Referrer         string `json:"referrer"`
	URL              string `json:"url"`
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")

	if _, err := h.svc.Get(r.Context(), invoiceID); err != nil {
		writeInvoiceError(w, err)
		return
	}

	st, err := h.ledger.Get(r.Context(), invoiceID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if st != invoice.StatusUnread {
		http.Error(w, "invoice is "+string(st)+" and can no longer be signed", http.StatusConflict)
		return
	}

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.SignatureData)
	if err != nil || len(image) == 0 {
		http.Error(w, "signatureData must be a base64 image", http.StatusBadRequest)
		return
	}

	signer, _ := auth.SignerFromContext(r.Context())
	info := signature.ParseUserAgent(r.UserAgent())

	snap := signature.Snapshot{
		SignerID:         signer.UserID,
		HospitalName:     signer.HospitalName,
		UserAgent:        r.UserAgent(),
		BrowserName:      info.BrowserName,
		BrowserVersion:   info.BrowserVersion,
		OS:               info.OS,
		Platform:         req.Platform,
		Language:         req.Language,
		Timezone:         req.Timezone,
		ScreenResolution: req.ScreenResolution,
		IPAddress:        clientAddr(r),
		Referrer:         req.Referrer,
		URL:              req.URL,
	}

	rec, err := h.vault.Save(r.Context(), invoiceID, image, snap)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toSignatureResponse(rec))
}

func (h *Handler) getSignature(w http.ResponseWriter, r *http.Request) {
	rec, err := h.vault.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, signature.ErrNotFound) {
			http.Error(w, "signature not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, toSignatureResponse(rec))
}

func (h *Handler) deleteSignature(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")

	st, err := h.ledger.Get(r.Context(), invoiceID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Confirmed evidence is retained for good; only a pre-confirmation
	// re-sign may discard it.
	if st == invoice.StatusConfirmed {
		http.Error(w, "cannot delete the signature of a confirmed invoice", http.StatusConflict)
		return
	}

	if err := h.vault.Delete(r.Context(), invoiceID); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	InvoiceID   string    `json:"invoiceId"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.svc.Get(r.Context(), req.InvoiceID); err != nil {
		writeInvoiceError(w, err)
		return
	}

	if err := h.ledger.Confirm(r.Context(), req.InvoiceID); err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"invoiceId": req.InvoiceID,
		"status":    string(invoice.StatusConfirmed),
	})
}

type disputeRequest struct {
	InvoiceID   string `json:"invoiceId"`
	DisputeType string `json:"disputeType"`
	DisputeMemo string `json:"disputeMemo"`
}

type disputeResponse struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoiceId"`
	DisputeType string    `json:"disputeType"`
	Memo        string    `json:"memo"`
	RequestedAt time.Time `json:"requestedAt"`
	SignerID    string    `json:"signerId"`
	Status      string    `json:"status"`
}

func (h *Handler) dispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.svc.Get(r.Context(), req.InvoiceID); err != nil {
		writeInvoiceError(w, err)
		return
	}

	signer, _ := auth.SignerFromContext(r.Context())

	dispute := invoice.NewDisputeRequest(
		req.InvoiceID,
		invoice.DisputeType(req.DisputeType),
		req.DisputeMemo,
		signer.UserID,
	)

	if err := h.ledger.Dispute(r.Context(), dispute); err != nil {
		writeLedgerError(w, err)
		return
	}

	// The dispute record is handed back for the vendor side to action; the
	// revision itself is issued out of band via the revise endpoint.
	writeJSON(w, http.StatusOK, disputeResponse{
		ID:          dispute.ID,
		InvoiceID:   dispute.InvoiceID,
		DisputeType: string(dispute.DisputeType),
		Memo:        dispute.Memo,
		RequestedAt: dispute.RequestedAt,
		SignerID:    dispute.SignerID,
		Status:      string(invoice.StatusDisputed),
	})
}

type signatureResponse struct {
	InvoiceID     string             `json:"invoiceId"`
	SignatureData []byte             `json:"signatureData"`
	Metadata      signature.Metadata `json:"metadata"`
	SchemaVersion int                `json:"version"`
}

func toSignatureResponse(rec *signature.Record) signatureResponse {
	return signatureResponse{
		InvoiceID:     rec.InvoiceID,
		SignatureData: rec.SignatureData,
		Metadata:      rec.Metadata,
		SchemaVersion: rec.SchemaVersion,
	}
}

func writeInvoiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, invoice.ErrNotFound) {
		http.Error(w, "invoice not found", http.StatusNotFound)
		return
	}

	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, status.ErrSignatureRequired):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, status.ErrDisputeDetails):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, status.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
