package mockapi

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/jonboulle/clockwork"
)

const (
	dateLayout     = "2006-01-02"
	maxPerPage     = 100
	defaultPerPage = 10
)

var ErrNotFound = errors.New("not found")

// ValidationError lists per-field messages the way the service reports
// them in a 422 body.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return fmt.Sprintf("invalid fields: %s", strings.Join(keys, ", "))
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// InvoiceStore keeps invoices in memory ordered by id.
type InvoiceStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	nextID   int64
	invoices map[int64]models.Invoice
}

func NewInvoiceStore(clock clockwork.Clock) *InvoiceStore {
	return &InvoiceStore{
		clock:    clock,
		nextID:   1,
		invoices: make(map[int64]models.Invoice),
	}
}

// Seed adds n generated invoices.
func (s *InvoiceStore) Seed(n int) {
	for i := 1; i <= n; i++ {
		_, _ = s.Create(models.Invoice{
			InvoiceNumber: fmt.Sprintf("FV/%04d/%d", i, s.clock.Now().Year()),
			BuyerNIP:      5260000000 + int64(i),
			SellerNIP:     7740001454,
			ProductName:   fmt.Sprintf("Consulting hours, batch %d", i),
			ProductPrice:  float64(100 * i),
		})
	}
}

func (s *InvoiceStore) List(page, perPage int) models.Page[models.Invoice] {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)
	if page <= 0 {
		page = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.invoices))
	for id := range s.invoices {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	total := len(ids)
	lastPage := max(1, (total+perPage-1)/perPage)

	data := []models.Invoice{}
	start := (page - 1) * perPage
	if start < total {
		end := min(start+perPage, total)
		for _, id := range ids[start:end] {
			data = append(data, s.invoices[id])
		}
	}

	return models.Page[models.Invoice]{
		Data:        data,
		CurrentPage: page,
		PerPage:     perPage,
		LastPage:    lastPage,
		Total:       total,
	}
}

func (s *InvoiceStore) Get(id int64) (models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return models.Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (s *InvoiceStore) Create(inv models.Invoice) (models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(inv, 0); err != nil {
		return models.Invoice{}, err
	}

	issued := s.clock.Now().Format(dateLayout)
	inv.ID = s.nextID
	inv.IssueDate = &issued
	inv.EditDate = nil
	s.nextID++
	s.invoices[inv.ID] = inv
	return inv, nil
}

func (s *InvoiceStore) Update(id int64, inv models.Invoice) (models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.invoices[id]
	if !ok {
		return models.Invoice{}, ErrNotFound
	}
	if err := s.validate(inv, id); err != nil {
		return models.Invoice{}, err
	}

	edited := s.clock.Now().Format(dateLayout)
	inv.ID = id
	inv.IssueDate = current.IssueDate
	inv.EditDate = &edited
	s.invoices[id] = inv
	return inv, nil
}

func (s *InvoiceStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

// validate must be called with mu held. self is excluded from the
// invoice number uniqueness check.
func (s *InvoiceStore) validate(inv models.Invoice, self int64) error {
	verr := &ValidationError{}

	number := strings.TrimSpace(inv.InvoiceNumber)
	if number == "" {
		verr.add("invoice_number", "The invoice number field is required.")
	} else {
		for id, other := range s.invoices {
			if id != self && other.InvoiceNumber == number {
				verr.add("invoice_number", "The invoice number has already been taken.")
				break
			}
		}
	}
	if inv.BuyerNIP <= 0 {
		verr.add("buyer_nip", "The buyer nip field must be a positive number.")
	}
	if inv.SellerNIP <= 0 {
		verr.add("seller_nip", "The seller nip field must be a positive number.")
	}
	if strings.TrimSpace(inv.ProductName) == "" {
		verr.add("product_name", "The product name field is required.")
	}
	if inv.ProductPrice < 0 {
		verr.add("product_price", "The product price field must be at least 0.")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
