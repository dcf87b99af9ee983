package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/onliner/medibill/internal/inbox"
	"github.com/onliner/medibill/internal/invoice"
)

type lineItemResponse struct {
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type invoiceResponse struct {
	ID              string             `json:"id"`
	VendorCode      string             `json:"vendorCode"`
	VendorName      string             `json:"vendorName"`
	HospitalID      string             `json:"hospitalId"`
	IssueDate       string             `json:"issueDate"`
	LineItems       []lineItemResponse `json:"lineItems"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Tax             decimal.Decimal    `json:"tax"`
	Total           decimal.Decimal    `json:"total"`
	Version         int                `json:"version"`
	ParentInvoiceID *string            `json:"parentInvoiceId,omitempty"`
	RevisionNote    string             `json:"revisionNote,omitempty"`
	CreatedAt       *time.Time         `json:"createdAt,omitempty"`
}

type inboxEntryResponse struct {
	invoiceResponse
	Status        invoice.Status `json:"status"`
	DisplayStatus string         `json:"displayStatus"`
}

func toResponse(inv *invoice.Invoice) invoiceResponse {
	items := make([]lineItemResponse, len(inv.LineItems))
	for i, it := range inv.LineItems {
		items[i] = lineItemResponse{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		}
	}

	resp := invoiceResponse{
		ID:              inv.ID,
		VendorCode:      inv.VendorCode,
		VendorName:      inv.VendorName,
		HospitalID:      inv.HospitalID,
		IssueDate:       inv.IssueDate.Format(time.DateOnly),
		LineItems:       items,
		Subtotal:        inv.Subtotal,
		Tax:             inv.Tax,
		Total:           inv.Total,
		Version:         inv.Version,
		ParentInvoiceID: inv.ParentInvoiceID,
		RevisionNote:    inv.RevisionNote,
	}

	if !inv.CreatedAt.IsZero() {
		resp.CreatedAt = &inv.CreatedAt
	}

	return resp
}

func toResponseList(invs []*invoice.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toResponse(inv)
	}

	return resp
}

func toInboxResponse(entries []inbox.Entry) []inboxEntryResponse {
	resp := make([]inboxEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = inboxEntryResponse{
			invoiceResponse: toResponse(e.Invoice),
			Status:          e.Status,
			DisplayStatus:   e.DisplayStatus,
		}
	}

	return resp
}
