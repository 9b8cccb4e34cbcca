package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidInvoice = errors.New("invalid invoice")

// Invoice mirrors the invoice resource of the remote service.
// IssueDate and EditDate are kept as the service formats them.
type Invoice struct {
	ID            int64   `json:"id,omitempty"`
	InvoiceNumber string  `json:"invoice_number"`
	BuyerNIP      int64   `json:"buyer_nip"`
	SellerNIP     int64   `json:"seller_nip"`
	ProductName   string  `json:"product_name"`
	ProductPrice  float64 `json:"product_price"`
	IssueDate     *string `json:"issue_date"`
	EditDate      *string `json:"edit_date"`
}

// Validate checks the fields the service requires before a create or update.
func (i *Invoice) Validate() error {
	var problems []string
	if strings.TrimSpace(i.InvoiceNumber) == "" {
		problems = append(problems, "invoice_number is required")
	}
	if i.BuyerNIP <= 0 {
		problems = append(problems, "buyer_nip must be positive")
	}
	if i.SellerNIP <= 0 {
		problems = append(problems, "seller_nip must be positive")
	}
	if strings.TrimSpace(i.ProductName) == "" {
		problems = append(problems, "product_name is required")
	}
	if i.ProductPrice < 0 {
		problems = append(problems, "product_price must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInvoice, strings.Join(problems, "; "))
	}
	return nil
}
