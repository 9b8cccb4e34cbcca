package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
)

func TestNew_ValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://localhost:8000/api", false},
		{"https with slash", "https://invoices.example.com/api/", false},
		{"no scheme", "localhost:8000", true},
		{"ftp", "ftp://localhost/api", true},
		{"no host", "http:///api", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "/", c.baseURL.Path[len(c.baseURL.Path)-1:])
		})
	}
}

func TestHTTPClient_Login(t *testing.T) {
	var gotCreds models.Credentials
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotCreds))

		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r1", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"access_token":"T1","user":{"id":7,"name":"Ann","email":"ann@example.com"}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)

	res, err := c.Login(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, "T1", res.AccessToken)
	require.NotNil(t, res.User)
	assert.Equal(t, int64(7), res.User.ID)
	assert.Equal(t, models.Credentials{Email: "ann@example.com", Password: "secret"}, gotCreds)
}

func TestHTTPClient_Login_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{refreshed: "never"}
	c, err := New(srv.URL)
	require.NoError(t, err)
	c.SetTokenSource(tokens)

	_, err = c.Login(context.Background(), "a@b.c", "bad")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.Zero(t, tokens.calls.Load(), "login must not trigger a refresh")
}

func TestHTTPClient_Login_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":1}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, ErrServer)
}

func TestHTTPClient_RefreshSendsCookieFromLogin(t *testing.T) {
	var refreshCookie atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r1", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"access_token":"T1","user":{"id":1}}`))
	})
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("refresh_token"); err == nil {
			refreshCookie.Store(ck.Value)
		}
		_, _ = w.Write([]byte(`{"access_token":"T2"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "a@b.c", "x")
	require.NoError(t, err)

	token, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", token)
	assert.Equal(t, "r1", refreshCookie.Load())
}

func TestHTTPClient_RefreshUnauthorized_DoesNotRecurse(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	c, err := New(srv.URL)
	require.NoError(t, err)
	c.SetTokenSource(tokens)

	_, err = c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualValues(t, 1, refreshCalls.Load())
	assert.Zero(t, tokens.calls.Load())
}

// invoiceAPI is a minimal in-memory invoice endpoint that only accepts
// the given token.
type invoiceAPI struct {
	mu       sync.Mutex
	token    string
	invoices map[int64]models.Invoice
	nextID   int64
}

func (a *invoiceAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+a.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/invoices":
		out := models.Page[models.Invoice]{CurrentPage: 1, PerPage: 10, LastPage: 1}
		for _, inv := range a.invoices {
			out.Data = append(out.Data, inv)
		}
		out.Total = len(out.Data)
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost && r.URL.Path == "/invoices":
		var in models.Invoice
		_ = json.NewDecoder(r.Body).Decode(&in)
		a.nextID++
		in.ID = a.nextID
		a.invoices[in.ID] = in
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	case r.Method == http.MethodPut && r.URL.Path == "/invoices/1":
		var in models.Invoice
		_ = json.NewDecoder(r.Body).Decode(&in)
		a.invoices[1] = in
		_ = json.NewEncoder(w).Encode(in)
	case r.Method == http.MethodGet && r.URL.Path == "/invoices/1":
		inv, ok := a.invoices[1]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(inv)
	case r.Method == http.MethodDelete && r.URL.Path == "/invoices/1":
		delete(a.invoices, 1)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestHTTPClient_InvoiceCRUD_WithRefresh(t *testing.T) {
	api := &invoiceAPI{token: "fresh", invoices: map[int64]models.Invoice{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	c, err := New(srv.URL)
	require.NoError(t, err)
	c.SetTokenSource(tokens)
	ctx := context.Background()

	created, err := c.CreateInvoice(ctx, &models.Invoice{InvoiceNumber: "FV/1/2024", BuyerNIP: 1234567890, SellerNIP: 987654321, ProductName: "Desk", ProductPrice: 99.5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "FV/1/2024", created.InvoiceNumber)
	assert.EqualValues(t, 1, tokens.calls.Load(), "first 401 refreshes and the POST body is replayed")

	page, err := c.ListInvoices(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	created.ProductName = "Chair"
	updated, err := c.UpdateInvoice(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Chair", updated.ProductName)

	got, err := c.GetInvoice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Chair", got.ProductName)

	require.NoError(t, c.DeleteInvoice(ctx, 1))

	_, err = c.GetInvoice(ctx, 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualValues(t, 1, tokens.calls.Load())
}

func TestHTTPClient_UpdateInvoice_RequiresID(t *testing.T) {
	c, err := New("http://localhost")
	require.NoError(t, err)

	_, err = c.UpdateInvoice(context.Background(), &models.Invoice{})
	assert.Error(t, err)
}

func TestHTTPClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.ListInvoices(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPClient_ListInvoices_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "25", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`{"data":[],"current_page":3,"per_page":25,"last_page":4,"total":80}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	page, err := c.ListInvoices(context.Background(), 3, 25)
	require.NoError(t, err)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Equal(t, 4, page.LastPage)
	assert.True(t, page.HasNext())
	assert.True(t, page.HasPrev())
}
