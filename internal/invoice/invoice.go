package invoice

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the workflow state of an invoice version. The value embedded in
// an invoice payload is only a seed at creation time; after that the status
// ledger is authoritative and the embedded field is never read again.
type Status string

const (
	StatusUnread    Status = "unread"
	StatusConfirmed Status = "confirmed"
	StatusDisputed  Status = "disputed"
)

// DisplayRevised is a presentation label for an unread invoice with
// version > 1. It is never stored as a status.
const DisplayRevised = "revised"

// DisputeType classifies why a hospital rejected a document.
type DisputeType string

const (
	DisputeQuantity  DisputeType = "quantity"
	DisputeDamage    DisputeType = "damage"
	DisputeWrongItem DisputeType = "wrong_item"
	DisputePrice     DisputeType = "price"
	DisputeOther     DisputeType = "other"
)

func (t DisputeType) Valid() bool {
	switch t {
	case DisputeQuantity, DisputeDamage, DisputeWrongItem, DisputePrice, DisputeOther:
		return true
	}

	return false
}

var (
	ErrNotFound   = errors.New("invoice not found")
	ErrDuplicate  = errors.New("duplicate invoice id")
	ErrValidation = errors.New("invalid invoice")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type LineItem struct {
	ProductName string
	Quantity    int64
	Unit        string
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Invoice is one immutable version of a billing document. Versions form a
// chain through ParentInvoiceID that terminates at a version-1 document.
type Invoice struct {
	ID              string
	VendorCode      string
	VendorName      string
	HospitalID      string
	IssueDate       time.Time
	LineItems       []LineItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Status          Status
	Version         int
	ParentInvoiceID *string
	RevisionNote    string
	CreatedAt       time.Time
}

// DisputeRequest is the outbound record produced once per dispute action and
// consumed by the vendor side to drive revision issuance.
type DisputeRequest struct {
	ID          string
	InvoiceID   string
	DisputeType DisputeType
	Memo        string
	RequestedAt time.Time
	SignerID    string
}

func NewDisputeRequest(invoiceID string, disputeType DisputeType, memo, signerID string) DisputeRequest {
	return DisputeRequest{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		DisputeType: disputeType,
		Memo:        memo,
		RequestedAt: time.Now().UTC(),
		SignerID:    signerID,
	}
}

var versionSuffix = regexp.MustCompile(`-v[0-9]+$`)

// RootID returns the id of the version-1 document for any id in a chain.
// Later versions carry a -v<N> suffix on the root id.
func RootID(id string) string {
	return versionSuffix.ReplaceAllString(id, "")
}

// DerivedID returns the deterministic id for a given version of a chain.
func DerivedID(rootID string, version int) string {
	if version <= 1 {
		return rootID
	}

	return fmt.Sprintf("%s-v%d", rootID, version)
}

// TaxRate is the VAT rate applied when recomputing invoice totals.
var TaxRate = decimal.NewFromFloat(0.1)

// ComputeTotals fills LineTotal on every item and returns subtotal, tax and
// total. Totals are always recomputed; values shipped in a payload are not
// trusted.
func ComputeTotals(items []LineItem) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero

	for i := range items {
		items[i].LineTotal = items[i].UnitPrice.Mul(decimal.NewFromInt(items[i].Quantity))
		subtotal = subtotal.Add(items[i].LineTotal)
	}

	tax = subtotal.Mul(TaxRate).Round(0)
	total = subtotal.Add(tax)

	return subtotal, tax, total
}
