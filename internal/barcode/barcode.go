// Package barcode validates the product identifiers read from a scanner or
// typed by the operator.
package barcode

import (
	"errors"
	"fmt"
	"strings"
)

type Symbology string

const (
	QR      Symbology = "qr"
	PDF417  Symbology = "pdf417"
	EAN13   Symbology = "ean13"
	Code128 Symbology = "code128"

	// Auto treats a 13-digit payload as EAN-13 and takes anything else as
	// the raw string the scanner produced.
	Auto Symbology = "auto"
)

// Supported lists the symbologies the scanner is configured for.
var Supported = []Symbology{QR, PDF417, EAN13, Code128}

var (
	ErrEmptyPayload         = errors.New("barcode is empty")
	ErrUnsupportedSymbology = errors.New("unsupported barcode type")
	ErrInvalidChecksum      = errors.New("invalid EAN-13 check digit")
	ErrInvalidFormat        = errors.New("invalid barcode format")
)

// Barcode is a validated scan.
type Barcode struct {
	Symbology Symbology
	Data      string
}

func (b Barcode) String() string { return b.Data }

// ParseSymbology accepts the names used on the command line, case-insensitively
// and with or without separators ("EAN-13", "ean_13", "ean13").
func ParseSymbology(s string) (Symbology, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	if norm == string(Auto) {
		return Auto, nil
	}
	for _, sym := range Supported {
		if string(sym) == norm {
			return sym, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbology, s)
}

// New validates data for the given symbology.
func New(sym Symbology, data string) (Barcode, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Barcode{}, ErrEmptyPayload
	}

	switch sym {
	case Auto:
		if len(data) == 13 && allDigits(data) {
			if err := checkEAN13(data); err != nil {
				return Barcode{}, err
			}
			sym = EAN13
		}
	case QR, PDF417:
	case Code128:
		for _, r := range data {
			if r > 127 {
				return Barcode{}, fmt.Errorf("%w: code128 only carries ASCII", ErrInvalidFormat)
			}
		}
	case EAN13:
		if err := checkEAN13(data); err != nil {
			return Barcode{}, err
		}
	default:
		return Barcode{}, fmt.Errorf("%w: %q", ErrUnsupportedSymbology, sym)
	}
	return Barcode{Symbology: sym, Data: data}, nil
}

func checkEAN13(data string) error {
	if len(data) != 13 {
		return fmt.Errorf("%w: EAN-13 needs 13 digits, got %d", ErrInvalidFormat, len(data))
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := data[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: EAN-13 must be numeric", ErrInvalidFormat)
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	last := data[12]
	if last < '0' || last > '9' {
		return fmt.Errorf("%w: EAN-13 must be numeric", ErrInvalidFormat)
	}
	if want := (10 - sum%10) % 10; int(last-'0') != want {
		return ErrInvalidChecksum
	}
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
