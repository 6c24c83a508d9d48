package serial

import (
	"strings"
	"testing"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestFormatRender(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		value  int64
		want   string
	}{
		{"padded", Format{Prefix: "SN-", Width: 6}, 1, "SN-000001"},
		{"unpadded prefix", Format{Prefix: "LCK-"}, 2803, "LCK-2803"},
		{"bare number", Format{}, 17, "17"},
		{"value wider than pad", Format{Prefix: "SN-", Width: 2}, 1234, "SN-1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.Render(tt.value))
		})
	}
}

func TestFormatStrip(t *testing.T) {
	f := Format{Prefix: "LCK-"}
	assert.Equal(t, "2803", f.Strip("LCK-2803"))
	assert.Equal(t, "17", Format{}.Strip("17"))
}

func TestValidateReference(t *testing.T) {
	assert.NoError(t, ValidateReference("order-1001"))
	assert.NoError(t, ValidateReference("shopify:order:1:line:2:unit:1"))

	for _, ref := range []string{"", "   ", "order\n1001", strings.Repeat("x", MaxReferenceLength+1)} {
		err := ValidateReference(ref)
		assert.Error(t, err, "reference %q", ref)
		assert.True(t, ierr.IsInvalidOrderReference(err))
		assert.False(t, ierr.IsRetryable(err))
	}
}
