package validator

import (
	"testing"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	OrderNumber string `validate:"required,max=32"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&sample{OrderNumber: "1001"}))

	err := ValidateRequest(&sample{})
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Same(t, GetValidator(), NewValidator())
}
