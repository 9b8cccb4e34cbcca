// Package mockapi is an in-memory stand-in for the remote invoice service.
// It speaks the same JSON API as the real one: JWT access tokens, a rotating
// refresh token in an HTTP-only cookie and paginated invoice CRUD.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const RefreshCookie = "refresh_token"

type Server struct {
	cfg    *Config
	clock  clockwork.Clock
	logger logging.Logger

	tokens   *Tokens
	invoices *InvoiceStore
	user     models.User

	registry      *prometheus.Registry
	requestsTotal *prometheus.CounterVec
	refreshes     atomic.Int64
}

type Option func(*Server)

func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(cfg *Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tokens = NewTokens([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL, s.clock)
	s.invoices = NewInvoiceStore(s.clock)
	s.invoices.Seed(cfg.SeedInvoices)

	created := s.clock.Now().UTC()
	s.user = models.User{
		ID:              1,
		Name:            cfg.UserName,
		Email:           cfg.UserEmail,
		EmailVerifiedAt: &created,
		CreatedAt:       created,
		UpdatedAt:       created,
	}

	s.registry = prometheus.NewRegistry()
	s.requestsTotal = promauto.With(s.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockapi_requests_total",
			Help: "Requests served by route and status code",
		},
		[]string{"route", "code"},
	)

	return s
}

// Tokens exposes the token issuer, mainly so tests can revoke refresh tokens.
func (s *Server) Tokens() *Tokens {
	return s.tokens
}

func (s *Server) Invoices() *InvoiceStore {
	return s.invoices
}

// RefreshCount is the number of successful POST /refresh calls so far.
func (s *Server) RefreshCount() int64 {
	return s.refreshes.Load()
}

// Handler builds the router. The API lives under /api and the prometheus
// counters under /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.observe)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/logout", s.handleLogout)
			r.Get("/user", s.handleUser)

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", s.handleListInvoices)
				r.Post("/", s.handleCreateInvoice)
				r.Get("/{id}", s.handleGetInvoice)
				r.Put("/{id}", s.handleUpdateInvoice)
				r.Delete("/{id}", s.handleDeleteInvoice)
			})
		})
	})

	return r
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

		s.logger.Debug(r.Context(), "request served",
			"method", r.Method,
			"route", route,
			"status", status,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"client_request_id", r.Header.Get("X-Request-ID"),
			"duration", s.clock.Since(start),
		)
	})
}

// ListenAndServe runs the service on cfg.Addr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "mock invoice service listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "shutting down mock invoice service")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
