package signature_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onliner/medibill/internal/kvstore"
	"github.com/onliner/medibill/internal/signature"
	"github.com/onliner/medibill/internal/syncbus"
)

func newVault(t *testing.T) (*signature.Vault, *kvstore.Memory) {
	t.Helper()

	kv := kvstore.NewMemory()

	return signature.NewVault(kv, syncbus.New().NewSession()), kv
}

func TestVault_RoundTrip(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	before := time.Now().UTC()
	image := []byte("png-bytes")

	saved, err := v.Save(ctx, "INV-001", image, signature.Snapshot{
		SignerID:     "user-1",
		HospitalName: "서울대학교병원",
		Timezone:     "Asia/Seoul",
	})
	require.NoError(t, err)

	got, err := v.Get(ctx, "INV-001")
	require.NoError(t, err)

	assert.Equal(t, image, got.SignatureData)
	assert.Equal(t, "user-1", got.Metadata.SignerID)
	assert.Equal(t, "서울대학교병원", got.Metadata.HospitalName)
	assert.Equal(t, saved.SchemaVersion, got.SchemaVersion)
	assert.False(t, got.Metadata.Timestamp.Before(before))
}

func TestVault_SaveOverwrites(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	_, err := v.Save(ctx, "INV-001", []byte("first"), signature.Snapshot{})
	require.NoError(t, err)

	_, err = v.Save(ctx, "INV-001", []byte("second"), signature.Snapshot{})
	require.NoError(t, err)

	got, err := v.Get(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got.SignatureData)
}

func TestVault_SaveRejectsEmptyImage(t *testing.T) {
	v, _ := newVault(t)

	_, err := v.Save(context.Background(), "INV-001", nil, signature.Snapshot{})
	assert.Error(t, err)
}

func TestVault_GetNotFound(t *testing.T) {
	v, _ := newVault(t)

	_, err := v.Get(context.Background(), "INV-404")
	assert.ErrorIs(t, err, signature.ErrNotFound)
}

func TestVault_DeleteIdempotent(t *testing.T) {
	v, _ := newVault(t)
	ctx := context.Background()

	_, err := v.Save(ctx, "INV-001", []byte("img"), signature.Snapshot{})
	require.NoError(t, err)

	require.NoError(t, v.Delete(ctx, "INV-001"))
	require.NoError(t, v.Delete(ctx, "INV-001"))

	_, err = v.Get(ctx, "INV-001")
	assert.ErrorIs(t, err, signature.ErrNotFound)
}

func TestVault_MalformedRecordTreatedAsAbsent(t *testing.T) {
	v, kv := newVault(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "invoice_signature_INV-001", []byte("{broken")))

	_, err := v.Get(ctx, "INV-001")
	assert.ErrorIs(t, err, signature.ErrNotFound)

	exists, err := v.Exists(ctx, "INV-001")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want signature.BrowserInfo
	}{
		{
			name: "ChromeOnWindows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want: signature.BrowserInfo{BrowserName: "Chrome", BrowserVersion: "120", OS: "Windows"},
		},
		{
			name: "EdgeOnWindows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			want: signature.BrowserInfo{BrowserName: "Edge", BrowserVersion: "120", OS: "Windows"},
		},
		{
			name: "FirefoxOnLinux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: signature.BrowserInfo{BrowserName: "Firefox", BrowserVersion: "121", OS: "Linux"},
		},
		{
			name: "SafariOnMac",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			want: signature.BrowserInfo{BrowserName: "Safari", BrowserVersion: "17", OS: "macOS"},
		},
		{
			name: "Unknown",
			ua:   "curl/8.4.0",
			want: signature.BrowserInfo{BrowserName: "Unknown", BrowserVersion: "Unknown", OS: "Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, signature.ParseUserAgent(tt.ua))
		})
	}
}
