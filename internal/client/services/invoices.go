// Package services contains application services for the invoicedesk client.
// This file defines the invoice service: a paginated view of the remote
// invoice list plus create, update and delete, each of which reloads the
// page being viewed.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/invoicedesk/internal/client/client"
	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

const DefaultPerPage = 10

var ErrNoSuchPage = errors.New("no such page")

// InvoiceService defines invoice operations for the CLI.
//
// Contract:
//   - FindAll: load the given page and make it the current one.
//   - Next / Prev: move one page, failing when there is no such page.
//   - Create / Update / Delete: mutate remotely, then reload the current page.
//     A failed reload is logged and reflected by Failed; it does not fail
//     the mutation.
//   - Get: fetch a single invoice without touching the page state.
//   - Page / Loading / Failed: snapshot of the page state.
type InvoiceService interface {
	FindAll(ctx context.Context, page int) (models.Page[models.Invoice], error)
	Next(ctx context.Context) (models.Page[models.Invoice], error)
	Prev(ctx context.Context) (models.Page[models.Invoice], error)
	Get(ctx context.Context, id int64) (*models.Invoice, error)
	Create(ctx context.Context, in *models.Invoice) (*models.Invoice, error)
	Update(ctx context.Context, in *models.Invoice) (*models.Invoice, error)
	Delete(ctx context.Context, id int64) error

	Page() models.Page[models.Invoice]
	Loading() bool
	Failed() bool
}

type invoiceService struct {
	client client.Client
	logger logging.Logger

	mu      sync.RWMutex
	page    models.Page[models.Invoice]
	loading bool
	failed  bool
}

// NewInvoiceService constructs an InvoiceService. perPage <= 0 selects
// DefaultPerPage.
func NewInvoiceService(c client.Client, perPage int, logger logging.Logger) InvoiceService {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &invoiceService{
		client: c,
		logger: logger,
		page:   models.Page[models.Invoice]{CurrentPage: 1, PerPage: perPage, LastPage: 1},
	}
}

func (s *invoiceService) FindAll(ctx context.Context, page int) (models.Page[models.Invoice], error) {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	s.loading = true
	s.failed = false
	perPage := s.page.PerPage
	s.mu.Unlock()

	res, err := s.client.ListInvoices(ctx, page, perPage)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.failed = true
		return s.copyPage(), fmt.Errorf("list invoices: %w", err)
	}

	s.page.Data = res.Data
	s.page.CurrentPage = res.CurrentPage
	s.page.LastPage = res.LastPage
	s.page.Total = res.Total
	return s.copyPage(), nil
}

func (s *invoiceService) Next(ctx context.Context) (models.Page[models.Invoice], error) {
	p := s.Page()
	if !p.HasNext() {
		return p, fmt.Errorf("%w: already on the last page (%d)", ErrNoSuchPage, p.LastPage)
	}
	return s.FindAll(ctx, p.CurrentPage+1)
}

func (s *invoiceService) Prev(ctx context.Context) (models.Page[models.Invoice], error) {
	p := s.Page()
	if !p.HasPrev() {
		return p, fmt.Errorf("%w: already on the first page", ErrNoSuchPage)
	}
	return s.FindAll(ctx, p.CurrentPage-1)
}

func (s *invoiceService) Get(ctx context.Context, id int64) (*models.Invoice, error) {
	inv, err := s.client.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return inv, nil
}

func (s *invoiceService) Create(ctx context.Context, in *models.Invoice) (*models.Invoice, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	out, err := s.client.CreateInvoice(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.reload(ctx)
	return out, nil
}

func (s *invoiceService) Update(ctx context.Context, in *models.Invoice) (*models.Invoice, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	out, err := s.client.UpdateInvoice(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", in.ID, err)
	}
	s.reload(ctx)
	return out, nil
}

func (s *invoiceService) Delete(ctx context.Context, id int64) error {
	if err := s.client.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	s.reload(ctx)
	return nil
}

// reload refetches the current page. Deleting the last row of the last
// page moves back one page.
func (s *invoiceService) reload(ctx context.Context) {
	current := s.Page().CurrentPage

	p, err := s.FindAll(ctx, current)
	if err != nil {
		s.logger.Warn(ctx, "reloading invoices failed", "page", current, "error", err)
		return
	}
	if len(p.Data) == 0 && p.CurrentPage > 1 && p.CurrentPage > p.LastPage {
		if _, err := s.FindAll(ctx, p.LastPage); err != nil {
			s.logger.Warn(ctx, "reloading invoices failed", "page", p.LastPage, "error", err)
		}
	}
}

func (s *invoiceService) Page() models.Page[models.Invoice] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyPage()
}

func (s *invoiceService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *invoiceService) Failed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// copyPage must be called with s.mu held.
func (s *invoiceService) copyPage() models.Page[models.Invoice] {
	p := s.page
	p.Data = append([]models.Invoice(nil), s.page.Data...)
	return p
}
