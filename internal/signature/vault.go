// Package signature stores the non-repudiation evidence captured when a
// hospital user signs an invoice: the signature image plus a snapshot of the
// signer's device and session descriptors taken at signing time.
package signature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onliner/medibill/internal/kvstore"
	"github.com/onliner/medibill/internal/syncbus"
)

var ErrNotFound = errors.New("signature not found")

const keyPrefix = "invoice_signature_"

// schemaVersion is the version of the metadata shape, not of the invoice.
const schemaVersion = 1

// Snapshot carries the descriptors that must be collected at signing time.
// They cannot be reconstructed later.
type Snapshot struct {
	SignerID         string `json:"signerId"`
	HospitalName     string `json:"hospitalName"`
	UserAgent        string `json:"userAgent"`
	BrowserName      string `json:"browserName"`
	BrowserVersion   string `json:"browserVersion"`
	OS               string `json:"os"`
	Platform         string `json:"platform"`
	Language         string `json:"language"`
	Timezone         string `json:"timezone"`
	ScreenResolution string `json:"screenResolution"`
	IPAddress        string `json:"ipAddress"`
	Referrer         string `json:"referrer"`
	URL              string `json:"url"`
}

type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Snapshot
}

type Record struct {
	InvoiceID     string   `json:"invoiceId"`
	SignatureData []byte   `json:"signatureData"`
	Metadata      Metadata `json:"metadata"`
	SchemaVersion int      `json:"version"`
}

// Vault keeps at most one signature record per invoice id.
type Vault struct {
	store   kvstore.Store
	session *syncbus.Session
}

func NewVault(store kvstore.Store, session *syncbus.Session) *Vault {
	return &Vault{store: store, session: session}
}

func key(invoiceID string) string {
	return keyPrefix + invoiceID
}

// Save stores or overwrites the record for an invoice id, stamping the
// metadata with the current time. It never changes the invoice status;
// confirmation is a separate explicit action.
func (v *Vault) Save(ctx context.Context, invoiceID string, image []byte, snap Snapshot) (*Record, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("signature image is required")
	}

	rec := &Record{
		InvoiceID:     invoiceID,
		SignatureData: image,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			Snapshot:  snap,
		},
		SchemaVersion: schemaVersion,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding signature record: %w", err)
	}

	if err := v.store.Set(ctx, key(invoiceID), data); err != nil {
		return nil, fmt.Errorf("storing signature record: %w", err)
	}

	v.session.Publish(syncbus.Event{
		Kind:             syncbus.KindSignature,
		InvoiceID:        invoiceID,
		SignaturePresent: true,
	})

	return rec, nil
}

func (v *Vault) Get(ctx context.Context, invoiceID string) (*Record, error) {
	data, err := v.store.Get(ctx, key(invoiceID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("loading signature record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Malformed persisted state is treated as absent.
		return nil, ErrNotFound
	}

	return &rec, nil
}

func (v *Vault) Exists(ctx context.Context, invoiceID string) (bool, error) {
	if _, err := v.Get(ctx, invoiceID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Delete removes the record for an invoice id. Deleting an absent record is
// a no-op.
func (v *Vault) Delete(ctx context.Context, invoiceID string) error {
	existed, err := v.Exists(ctx, invoiceID)
	if err != nil {
		return err
	}

	if err := v.store.Delete(ctx, key(invoiceID)); err != nil {
		return fmt.Errorf("deleting signature record: %w", err)
	}

	if existed {
		v.session.Publish(syncbus.Event{
			Kind:             syncbus.KindSignature,
			InvoiceID:        invoiceID,
			SignaturePresent: false,
		})
	}

	return nil
}
