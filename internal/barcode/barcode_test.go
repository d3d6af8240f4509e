package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbology(t *testing.T) {
	for in, want := range map[string]Symbology{
		"qr":      QR,
		"QR":      QR,
		"EAN-13":  EAN13,
		"ean_13":  EAN13,
		"Code128": Code128,
		"pdf417":  PDF417,
		"AUTO":    Auto,
	} {
		got, err := ParseSymbology(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSymbology("upc-a")
	require.ErrorIs(t, err, ErrUnsupportedSymbology)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		sym     Symbology
		data    string
		wantErr error
	}{
		{"valid ean13", EAN13, "4006381333931", nil},
		{"valid ean13 zero check", EAN13, "0012345678905", nil},
		{"bad check digit", EAN13, "4006381333932", ErrInvalidChecksum},
		{"short ean13", EAN13, "400638133393", ErrInvalidFormat},
		{"letters in ean13", EAN13, "40063813339A1", ErrInvalidFormat},
		{"qr anything", QR, "https://example.com/p/1", nil},
		{"code128 ascii", Code128, "SKU-0001", nil},
		{"code128 non ascii", Code128, "SKU-é", ErrInvalidFormat},
		{"empty", QR, "   ", ErrEmptyPayload},
		{"unknown symbology", Symbology("aztec"), "x", ErrUnsupportedSymbology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.sym, tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sym, b.Symbology)
			assert.Equal(t, tt.data, b.String())
		})
	}
}

func TestNew_Auto(t *testing.T) {
	tests := []struct {
		data    string
		want    Symbology
		wantErr error
	}{
		{"4006381333931", EAN13, nil},
		{"4006381333932", "", ErrInvalidChecksum},
		{"8901234", Auto, nil},
		{"SKU-42", Auto, nil},
		{"https://example.com/p/1", Auto, nil},
		{"", "", ErrEmptyPayload},
	}
	for _, tt := range tests {
		b, err := New(Auto, tt.data)
		if tt.wantErr != nil {
			require.ErrorIs(t, err, tt.wantErr, tt.data)
			continue
		}
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.want, b.Symbology, tt.data)
		assert.Equal(t, tt.data, b.Data)
	}
}
