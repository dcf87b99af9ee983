package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawLineItem is a loosely shaped inbound line item. Unit prices accept both
// JSON numbers and strings.
type RawLineItem struct {
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// RawInvoice is the untrusted inbound payload shape. Mixed mock and real data
// sources ship inconsistent fields, so everything is validated and totals are
// recomputed before an Invoice enters the core.
type RawInvoice struct {
	ID              string        `json:"id"`
	VendorCode      string        `json:"vendorCode"`
	VendorName      string        `json:"vendorName"`
	HospitalID      string        `json:"hospitalId"`
	IssueDate       string        `json:"issueDate"`
	LineItems       []RawLineItem `json:"lineItems"`
	Status          string        `json:"status,omitempty"`
	Version         int           `json:"version,omitempty"`
	ParentInvoiceID *string       `json:"parentInvoiceId,omitempty"`
	RevisionNote    string        `json:"revisionNote,omitempty"`
}

// Normalize maps an arbitrary inbound payload into a strict Invoice or
// rejects it with ErrValidation.
func Normalize(raw RawInvoice) (*Invoice, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return nil, validationErr("id is required")
	}

	if strings.TrimSpace(raw.VendorCode) == "" {
		return nil, validationErr("vendorCode is required")
	}

	if strings.TrimSpace(raw.HospitalID) == "" {
		return nil, validationErr("hospitalId is required")
	}

	issueDate, err := time.Parse(time.DateOnly, raw.IssueDate)
	if err != nil {
		return nil, validationErr("issueDate %q is not a valid date", raw.IssueDate)
	}

	version := raw.Version
	if version == 0 {
		version = 1
	}

	if version < 1 {
		return nil, validationErr("version must be positive, got %d", version)
	}

	if version == 1 && raw.ParentInvoiceID != nil {
		return nil, validationErr("version 1 must not reference a parent")
	}

	if version > 1 && (raw.ParentInvoiceID == nil || *raw.ParentInvoiceID == "") {
		return nil, validationErr("version %d requires parentInvoiceId", version)
	}

	items, err := normalizeItems(raw.LineItems)
	if err != nil {
		return nil, err
	}

	subtotal, tax, total := ComputeTotals(items)

	status := Status(raw.Status)
	switch status {
	case StatusUnread, StatusConfirmed, StatusDisputed:
	default:
		status = StatusUnread
	}

	return &Invoice{
		ID:              id,
		VendorCode:      strings.TrimSpace(raw.VendorCode),
		VendorName:      strings.TrimSpace(raw.VendorName),
		HospitalID:      strings.TrimSpace(raw.HospitalID),
		IssueDate:       issueDate,
		LineItems:       items,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Status:          status,
		Version:         version,
		ParentInvoiceID: raw.ParentInvoiceID,
		RevisionNote:    strings.TrimSpace(raw.RevisionNote),
	}, nil
}

func normalizeItems(raw []RawLineItem) ([]LineItem, error) {
	if len(raw) == 0 {
		return nil, validationErr("at least one line item is required")
	}

	items := make([]LineItem, len(raw))

	for i, it := range raw {
		if strings.TrimSpace(it.ProductName) == "" {
			return nil, validationErr("line item %d: productName is required", i)
		}

		if it.Quantity <= 0 {
			return nil, validationErr("line item %d: quantity must be positive", i)
		}

		if it.UnitPrice.IsNegative() {
			return nil, validationErr("line item %d: unitPrice must not be negative", i)
		}

		items[i] = LineItem{
			ProductName: strings.TrimSpace(it.ProductName),
			Quantity:    it.Quantity,
			Unit:        strings.TrimSpace(it.Unit),
			UnitPrice:   it.UnitPrice,
		}
	}

	return items, nil
}
