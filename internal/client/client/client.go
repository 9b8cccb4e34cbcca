package client

import (
	"context"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
)

type Client interface {
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (*models.User, error)

	ListInvoices(ctx context.Context, page, perPage int) (*models.Page[models.Invoice], error)
	GetInvoice(ctx context.Context, id int64) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, in *models.Invoice) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, in *models.Invoice) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
}
