// Package notify is the boundary to the platform notification surface.
// Delivery is fire-and-forget: local workflow state never waits on, or rolls
// back for, a notification outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Dispatcher interface {
	NotifyNewInvoice(ctx context.Context, invoiceID, vendorName string)
	NotifyInvoiceReminder(ctx context.Context, invoiceID, vendorName string)
}

const dispatchTimeout = 5 * time.Second

// Webhook posts notification events to the configured collaborator endpoint.
// Each payload carries a deep link back into the invoice detail view.
type Webhook struct {
	url      string
	linkBase string
	client   *http.Client
}

func NewWebhook(url, linkBase string) *Webhook {
	return &Webhook{
		url:      url,
		linkBase: linkBase,
		client:   &http.Client{Timeout: dispatchTimeout},
	}
}

type webhookPayload struct {
	Event     string `json:"event"`
	InvoiceID string `json:"invoiceId"`
	Vendor    string `json:"vendorName"`
	Link      string `json:"link"`
}

func (w *Webhook) NotifyNewInvoice(_ context.Context, invoiceID, vendorName string) {
	go w.dispatch("invoice.new", invoiceID, vendorName)
}

func (w *Webhook) NotifyInvoiceReminder(_ context.Context, invoiceID, vendorName string) {
	go w.dispatch("invoice.reminder", invoiceID, vendorName)
}

func (w *Webhook) dispatch(event, invoiceID, vendorName string) {
	payload := webhookPayload{
		Event:     event,
		InvoiceID: invoiceID,
		Vendor:    vendorName,
		Link:      fmt.Sprintf("%s/%s", w.linkBase, invoiceID),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encoding notification payload", "event", event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("building notification request", "event", event, "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Warn("notification delivery failed", "event", event, "invoice_id", invoiceID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("notification rejected", "event", event, "invoice_id", invoiceID, "status", resp.StatusCode)
	}
}

// Nop logs notifications instead of delivering them. Used when no webhook is
// configured.
type Nop struct{}

func (Nop) NotifyNewInvoice(_ context.Context, invoiceID, vendorName string) {
	slog.Debug("notification skipped", "event", "invoice.new", "invoice_id", invoiceID, "vendor", vendorName)
}

func (Nop) NotifyInvoiceReminder(_ context.Context, invoiceID, vendorName string) {
	slog.Debug("notification skipped", "event", "invoice.reminder", "invoice_id", invoiceID, "vendor", vendorName)
}
