package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderNames(t *testing.T) {
	o := &Order{ID: 5501, Name: "#1001"}
	assert.Equal(t, "#1001", o.DisplayName())
	assert.Equal(t, "1001", o.Number())
	assert.Equal(t, "5501", o.IDString())

	o = &Order{ID: 5502, OrderNumber: 1002}
	assert.Equal(t, "#1002", o.DisplayName())

	o = &Order{ID: 5503}
	assert.Equal(t, "5503", o.DisplayName())
}

func TestCustomerName(t *testing.T) {
	assert.Equal(t, "", (&Order{}).CustomerName())
	assert.Equal(t, "Ada Lovelace", (&Order{Customer: &Customer{FirstName: "Ada", LastName: "Lovelace"}}).CustomerName())
	assert.Equal(t, "Ada", (&Order{Customer: &Customer{FirstName: "Ada"}}).CustomerName())
}

func TestDate(t *testing.T) {
	o := &Order{CreatedAt: "2024-03-05T10:20:30-05:00"}
	assert.Equal(t, "2024-03-05 15:20:30", o.Date().UTC().Format(time.DateTime))

	before := time.Now().UTC().Add(-time.Second)
	assert.True(t, (&Order{CreatedAt: "yesterday"}).Date().After(before))
}

func TestLineItem(t *testing.T) {
	assert.True(t, LineItem{Title: "-- Custom engraving"}.Skipped())
	assert.False(t, LineItem{Title: "Linear Clock"}.Skipped())

	name, desc := LineItem{Title: "Linear Clock: Walnut / Brass"}.ProductName()
	assert.Equal(t, "Linear Clock", name)
	assert.Equal(t, "Walnut / Brass", desc)

	name, desc = LineItem{Title: "Cleartime"}.ProductName()
	assert.Equal(t, "Cleartime", name)
	assert.Equal(t, "", desc)
}
