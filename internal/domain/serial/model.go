package serial

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
)

// MaxReferenceLength bounds the order reference stored as part of the record key
const MaxReferenceLength = 255

// Record is the durable mapping from an order reference to its issued serial number.
// A record is written once and never updated or deleted.
type Record struct {
	ID        string    `db:"id" json:"id"`
	Line      string    `db:"line" json:"line"`
	Reference string    `db:"reference" json:"reference"`
	OrderID   string    `db:"order_id" json:"order_id,omitempty"`
	Value     int64     `db:"value" json:"value"`
	Number    string    `db:"number" json:"number"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Format renders counter values for one product line
type Format struct {
	Prefix string
	Width  int
}

// Render returns the serial number for a counter value, e.g. SN-000042
func (f Format) Render(value int64) string {
	if f.Width > 0 {
		return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, value)
	}
	return fmt.Sprintf("%s%d", f.Prefix, value)
}

// Strip removes the line prefix from a rendered serial number
func (f Format) Strip(number string) string {
	return strings.TrimPrefix(number, f.Prefix)
}

// ValidateReference checks that an order reference can be used as a record key
func ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ierr.NewError("order reference is empty").
			WithHint("The order reference is missing").
			Mark(ierr.ErrInvalidOrderReference)
	}
	if len(ref) > MaxReferenceLength {
		return ierr.NewErrorf("order reference is %d bytes", len(ref)).
			WithHintf("The order reference must be at most %d bytes", MaxReferenceLength).
			WithReportableDetails(map[string]any{"length": len(ref)}).
			Mark(ierr.ErrInvalidOrderReference)
	}
	for _, r := range ref {
		if unicode.IsControl(r) {
			return ierr.NewError("order reference contains control characters").
				WithHint("The order reference is malformed").
				Mark(ierr.ErrInvalidOrderReference)
		}
	}
	return nil
}

// Key is the composite identity of a record
func Key(line, reference string) string {
	return line + "#" + reference
}

// NumberKey identifies the claim on a rendered serial number. Line names never start
// with '#', so it cannot collide with a record Key.
func NumberKey(number string) string {
	return "#number#" + number
}
