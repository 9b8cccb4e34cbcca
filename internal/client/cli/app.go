package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/invoicedesk/internal/client/client"
	"github.com/dmitrijs2005/invoicedesk/internal/client/config"
	"github.com/dmitrijs2005/invoicedesk/internal/client/metrics"
	"github.com/dmitrijs2005/invoicedesk/internal/client/services"
	"github.com/dmitrijs2005/invoicedesk/internal/client/session"
	"github.com/dmitrijs2005/invoicedesk/internal/client/storage"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	metrics  *metrics.Metrics
	store    *storage.Store
	session  *session.Session
	invoices services.InvoiceService

	reader *bufio.Reader
	out    io.Writer
}

type AppOption func(*App)

// WithIO replaces stdin/stdout, mostly for tests.
func WithIO(in io.Reader, out io.Writer) AppOption {
	return func(a *App) {
		a.reader = bufio.NewReader(in)
		a.out = out
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(l logging.Logger) AppOption {
	return func(a *App) { a.logger = l }
}

// NewApp builds the whole client: store, HTTP client, session (restored from
// the store) and invoice service.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	a := &App{
		config:  cfg,
		logger:  logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
		metrics: metrics.New(),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	store, err := storage.Open(ctx, storage.Options{
		Kind:           cfg.SessionStore,
		DBPath:         cfg.DBPath,
		KeyringService: cfg.KeyringService,
		Namespace:      session.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.store = store

	// the refresh cookie is kept next to the session snapshot
	jar, err := client.NewPersistentJar(ctx, cfg.APIBaseURL, store, a.logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	api, err := client.New(cfg.APIBaseURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithCookieJar(jar),
		client.WithLogger(a.logger),
		client.WithMetrics(a.metrics),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a.session = session.New(api, store,
		session.WithCredentials(jar),
		session.WithLogger(a.logger),
		session.WithMetrics(a.metrics),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
	)
	api.SetTokenSource(a.session)

	if err := a.session.Restore(ctx); err != nil {
		a.logger.Warn(ctx, "cannot restore session, starting logged out", "error", err)
	}

	a.invoices = services.NewInvoiceService(api, cfg.PerPage, a.logger)
	return a, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) isLoggedIn() bool {
	return a.session.IsLoggedIn()
}

// status is shown in the REPL prompt.
func (a *App) status() string {
	u := a.session.User()
	switch {
	case !a.session.IsLoggedIn():
		return "(logged out)"
	case u != nil && u.Email != "":
		return fmt.Sprintf("(%s)", u.Email)
	default:
		return "(logged in)"
	}
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return fmt.Errorf("%w: use 'login' first", client.ErrNotLoggedIn)
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}
