package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInvoice() Invoice {
	return Invoice{
		InvoiceNumber: "FV/2024/01",
		BuyerNIP:      5260250274,
		SellerNIP:     7740001454,
		ProductName:   "Consulting",
		ProductPrice:  1200.5,
	}
}

func TestInvoice_Validate_OK(t *testing.T) {
	inv := validInvoice()
	require.NoError(t, inv.Validate())
}

func TestInvoice_Validate_CollectsProblems(t *testing.T) {
	inv := validInvoice()
	inv.InvoiceNumber = "  "
	inv.BuyerNIP = 0
	inv.ProductPrice = -1

	err := inv.Validate()
	require.ErrorIs(t, err, ErrInvalidInvoice)
	assert.Contains(t, err.Error(), "invoice_number is required")
	assert.Contains(t, err.Error(), "buyer_nip must be positive")
	assert.Contains(t, err.Error(), "product_price must not be negative")
	assert.NotContains(t, err.Error(), "seller_nip")
}

func TestPage_Navigation(t *testing.T) {
	p := Page[Invoice]{CurrentPage: 1, LastPage: 3}
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p.CurrentPage = 3
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())
}
