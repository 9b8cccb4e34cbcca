package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dmitrijs2005/invoicedesk/internal/client/metrics"
	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

const DefaultRequestTimeout = 30 * time.Second

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks JSON to the invoice service.
//
// Auth endpoints (login, logout, refresh) go through an AuthTransport that
// only attaches the bearer token; everything else goes through one that also
// replays a request after a 401. A 401 from /refresh therefore never
// recurses into another refresh.
type HTTPClient struct {
	baseURL *url.URL

	authHTTP *http.Client
	apiHTTP  *http.Client

	authTransport *AuthTransport
	apiTransport  *AuthTransport
}

type options struct {
	timeout time.Duration
	base    http.RoundTripper
	jar     http.CookieJar
	logger  logging.Logger
	metrics *metrics.Metrics
}

type Option func(*options)

// WithTimeout bounds every HTTP exchange, including the replay after a 401.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) { o.jar = jar }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates an HTTPClient for the service rooted at baseURL, e.g.
// "http://127.0.0.1:8000/api". The refresh credential travels as a cookie,
// so both pipelines share one cookie jar.
func New(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: host is required", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	o := options{timeout: DefaultRequestTimeout, logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		o.jar = jar
	}

	authTransport := &AuthTransport{Base: o.base, Logger: o.logger, Metrics: o.metrics}
	apiTransport := &AuthTransport{Base: o.base, Logger: o.logger, Metrics: o.metrics, RetryUnauthorized: true}

	return &HTTPClient{
		baseURL:       u,
		authHTTP:      &http.Client{Transport: authTransport, Jar: o.jar, Timeout: o.timeout},
		apiHTTP:       &http.Client{Transport: apiTransport, Jar: o.jar, Timeout: o.timeout},
		authTransport: authTransport,
		apiTransport:  apiTransport,
	}, nil
}

// SetTokenSource wires the session into both pipelines. It must be called
// before the first request and must not race with requests in flight.
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.authTransport.Tokens = ts
	c.apiTransport.Tokens = ts
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	var out models.LoginResult
	if err := c.do(ctx, c.authHTTP, http.MethodPost, "login", nil, models.Credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response carries no access token", ErrServer)
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, c.authHTTP, http.MethodPost, "logout", nil, nil, nil)
}

func (c *HTTPClient) Refresh(ctx context.Context) (string, error) {
	var out models.RefreshResult
	if err := c.do(ctx, c.authHTTP, http.MethodPost, "refresh", nil, nil, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh response carries no access token", ErrServer)
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, c.apiHTTP, http.MethodGet, "user", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListInvoices(ctx context.Context, page, perPage int) (*models.Page[models.Invoice], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var out models.Page[models.Invoice]
	if err := c.do(ctx, c.apiHTTP, http.MethodGet, "invoices", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, c.apiHTTP, http.MethodGet, invoicePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateInvoice(ctx context.Context, in *models.Invoice) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, c.apiHTTP, http.MethodPost, "invoices", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateInvoice(ctx context.Context, in *models.Invoice) (*models.Invoice, error) {
	if in.ID == 0 {
		return nil, errors.New("update invoice: id is required")
	}
	var out models.Invoice
	if err := c.do(ctx, c.apiHTTP, http.MethodPut, invoicePath(in.ID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteInvoice(ctx context.Context, id int64) error {
	return c.do(ctx, c.apiHTTP, http.MethodDelete, invoicePath(id), nil, nil, nil)
}

func invoicePath(id int64) string {
	return "invoices/" + strconv.FormatInt(id, 10)
}

func (c *HTTPClient) endpoint(path string, q url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs one JSON exchange. in is marshalled as the request body when
// non-nil; out is decoded from a 2xx body when non-nil.
func (c *HTTPClient) do(ctx context.Context, hc *http.Client, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return mapError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(method+" "+path, err)
	}
	return nil
}
