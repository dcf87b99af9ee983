package invoice_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onliner/medibill/internal/invoice"
)

func TestRootID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"INV-004", "INV-004"},
		{"INV-004-v2", "INV-004"},
		{"INV-004-v10", "INV-004"},
		{"INV-2024-001", "INV-2024-001"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, invoice.RootID(tt.id))
		})
	}
}

func TestDerivedID(t *testing.T) {
	assert.Equal(t, "INV-004", invoice.DerivedID("INV-004", 1))
	assert.Equal(t, "INV-004-v2", invoice.DerivedID("INV-004", 2))
	assert.Equal(t, "INV-004-v3", invoice.DerivedID("INV-004", 3))
}

func TestNormalize(t *testing.T) {
	parent := "INV-001"

	type testCase struct {
		name    string
		raw     invoice.RawInvoice
		wantErr bool
	}

	valid := invoice.RawInvoice{
		ID:         "INV-001",
		VendorCode: "dh-pharm",
		VendorName: "DH Pharm",
		HospitalID: "HOSP-1",
		IssueDate:  "2024-01-15",
		LineItems: []invoice.RawLineItem{
			{ProductName: "Tylenol 500mg", Quantity: 100, Unit: "tab", UnitPrice: decimal.NewFromInt(50)},
			{ProductName: "Aspirin 100mg", Quantity: 200, Unit: "tab", UnitPrice: decimal.NewFromInt(30)},
		},
	}

	tests := []testCase{
		{name: "Valid", raw: valid},
		{
			name: "MissingID",
			raw: func() invoice.RawInvoice {
				r := valid
				r.ID = "  "
				return r
			}(),
			wantErr: true,
		},
		{
			name: "BadDate",
			raw: func() invoice.RawInvoice {
				r := valid
				r.IssueDate = "15/01/2024"
				return r
			}(),
			wantErr: true,
		},
		{
			name: "Version2WithoutParent",
			raw: func() invoice.RawInvoice {
				r := valid
				r.Version = 2
				return r
			}(),
			wantErr: true,
		},
		{
			name: "Version1WithParent",
			raw: func() invoice.RawInvoice {
				r := valid
				r.ParentInvoiceID = &parent
				return r
			}(),
			wantErr: true,
		},
		{
			name: "NoLineItems",
			raw: func() invoice.RawInvoice {
				r := valid
				r.LineItems = nil
				return r
			}(),
			wantErr: true,
		},
		{
			name: "ZeroQuantity",
			raw: func() invoice.RawInvoice {
				r := valid
				r.LineItems = []invoice.RawLineItem{{ProductName: "x", Quantity: 0, UnitPrice: decimal.NewFromInt(10)}}
				return r
			}(),
			wantErr: true,
		},
		{
			name: "NegativePrice",
			raw: func() invoice.RawInvoice {
				r := valid
				r.LineItems = []invoice.RawLineItem{{ProductName: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}
				return r
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := invoice.Normalize(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, invoice.ErrValidation)
				assert.Nil(t, inv)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, inv.Version)
			assert.Equal(t, invoice.StatusUnread, inv.Status)
		})
	}
}

func TestNormalize_RecomputesTotals(t *testing.T) {
	raw := invoice.RawInvoice{
		ID:         "INV-001",
		VendorCode: "dh-pharm",
		HospitalID: "HOSP-1",
		IssueDate:  "2024-01-15",
		// Embedded totals are absent on purpose; they must be derived.
		LineItems: []invoice.RawLineItem{
			{ProductName: "Tylenol 500mg", Quantity: 100, Unit: "tab", UnitPrice: decimal.NewFromInt(50)},
			{ProductName: "Aspirin 100mg", Quantity: 200, Unit: "tab", UnitPrice: decimal.NewFromInt(30)},
		},
	}

	inv, err := invoice.Normalize(raw)
	require.NoError(t, err)

	assert.True(t, inv.LineItems[0].LineTotal.Equal(decimal.NewFromInt(5000)))
	assert.True(t, inv.LineItems[1].LineTotal.Equal(decimal.NewFromInt(6000)))
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(11000)))
	assert.True(t, inv.Tax.Equal(decimal.NewFromInt(1100)))
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(12100)))
}

func TestNormalize_UnknownEmbeddedStatus(t *testing.T) {
	raw := invoice.RawInvoice{
		ID:         "INV-001",
		VendorCode: "dh-pharm",
		HospitalID: "HOSP-1",
		IssueDate:  "2024-01-15",
		Status:     "paid",
		LineItems: []invoice.RawLineItem{
			{ProductName: "Tylenol 500mg", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
	}

	inv, err := invoice.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnread, inv.Status)
}
