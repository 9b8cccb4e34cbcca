package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/invoicedesk/internal/client/client"
	"github.com/dmitrijs2005/invoicedesk/internal/client/config"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
	"github.com/dmitrijs2005/invoicedesk/internal/mockapi"
)

const (
	testEmail    = "user@example.com"
	testPassword = "pw"
)

type testEnv struct {
	t      *testing.T
	server *mockapi.Server
	clock  *clockwork.FakeClock
	apiURL string
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prev := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = prev })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	srv := mockapi.NewServer(&mockapi.Config{
		JWTSecret:    "cli-test",
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
		UserName:     "Test User",
		UserEmail:    testEmail,
		UserPassword: testPassword,
		SeedInvoices: 12,
	}, mockapi.WithClock(clock))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		t:      t,
		server: srv,
		clock:  clock,
		apiURL: ts.URL + "/api",
		dbPath: filepath.Join(t.TempDir(), "session.db"),
	}
}

func (e *testEnv) config() *config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = e.apiURL
	cfg.DBPath = e.dbPath
	cfg.PerPage = 5
	return cfg
}

// app builds an App reading the given script as user input.
func (e *testEnv) app(input string) (*App, *bytes.Buffer) {
	e.t.Helper()

	var out bytes.Buffer
	a, err := NewApp(context.Background(), e.config(),
		WithIO(strings.NewReader(input), &out),
		WithLogger(logging.Nop()),
	)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = a.Close() })
	return a, &out
}

func TestApp_LoginListWhoAmI(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "("+testEmail+")", a.status())

	require.NoError(t, a.List(ctx, 2))
	require.NoError(t, a.WhoAmI(ctx))

	s := out.String()
	assert.Contains(t, s, "Logged in as "+testEmail)
	assert.Contains(t, s, "Page 2 of 3 (12 invoices)")
	assert.Contains(t, s, "Name:  Test User")
	assert.Contains(t, s, "Token expires:")
}

func TestApp_LoginPromptsForEmail(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testEmail + "\n" + testPassword + "\n")

	require.NoError(t, a.Login(context.Background(), ""))
	assert.Contains(t, out.String(), "Enter email")
	assert.Contains(t, out.String(), "Enter password: ")
	assert.True(t, a.isLoggedIn())
}

func TestApp_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.app("wrong\n")

	err := a.Login(context.Background(), testEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong email or password")
	assert.False(t, a.isLoggedIn())
}

func TestApp_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.app("")
	ctx := context.Background()

	require.ErrorIs(t, a.List(ctx, 1), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.WhoAmI(ctx), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.Show(ctx, 1), client.ErrNotLoggedIn)
	require.ErrorIs(t, a.Delete(ctx, 1), client.ErrNotLoggedIn)
	assert.Equal(t, "(logged out)", a.status())
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)

	first, _ := env.app(testPassword + "\n")
	require.NoError(t, first.Login(context.Background(), testEmail))
	token := first.session.AccessToken()
	require.NoError(t, first.Close())

	second, out := env.app("")
	assert.True(t, second.isLoggedIn())
	assert.Equal(t, token, second.session.AccessToken())
	require.NoError(t, second.List(context.Background(), 1))
	assert.Contains(t, out.String(), "Page 1 of 3")
}

func TestApp_RestoredSessionRefreshesAfterRestart(t *testing.T) {
	env := newTestEnv(t)

	first, _ := env.app(testPassword + "\n")
	require.NoError(t, first.Login(context.Background(), testEmail))
	require.NoError(t, first.Close())

	second, out := env.app("")
	env.clock.Advance(2 * time.Minute)

	require.NoError(t, second.List(context.Background(), 1))
	assert.True(t, second.isLoggedIn())
	assert.EqualValues(t, 1, env.server.RefreshCount())
	assert.Contains(t, out.String(), "Page 1 of 3")

	// the rotated cookie is what the next run picks up
	require.NoError(t, second.Close())
	env.clock.Advance(2 * time.Minute)
	third, _ := env.app("")
	require.NoError(t, third.List(context.Background(), 1))
	assert.EqualValues(t, 2, env.server.RefreshCount())
}

func TestApp_ExpiredTokenIsRefreshedTransparently(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	before := a.session.AccessToken()

	env.clock.Advance(2 * time.Minute)
	require.NoError(t, a.List(ctx, 1))

	assert.EqualValues(t, 1, env.server.RefreshCount())
	assert.NotEqual(t, before, a.session.AccessToken())
	assert.Contains(t, out.String(), "Page 1 of 3")

	out.Reset()
	require.NoError(t, a.Stats())
	assert.Contains(t, out.String(), `invoicedesk_session_refresh_total{result="success"} 1`)
	assert.Contains(t, out.String(), `invoicedesk_auth_retries_total{result="success"} 1`)
}

func TestApp_RevokedRefreshLogsOut(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	env.server.Tokens().RevokeAll()
	env.clock.Advance(2 * time.Minute)

	err := a.List(ctx, 1)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, a.isLoggedIn())

	// the cleared session is not restored by the next run
	next, _ := env.app("")
	assert.False(t, next.isLoggedIn())
}

func TestApp_AddEditDelete(t *testing.T) {
	env := newTestEnv(t)
	input := strings.Join([]string{
		testPassword,
		// add
		"FV/NEW/1", "1234567890", "9876543210", "Widget", "12,50",
		// edit: keep everything but the product name
		"", "", "", "Gadget", "",
		// delete
		"y",
	}, "\n") + "\n"
	a, out := env.app(input)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	require.NoError(t, a.Add(ctx))
	assert.Contains(t, out.String(), "Created invoice 13 (FV/NEW/1)")

	require.NoError(t, a.Edit(ctx, 13))
	assert.Contains(t, out.String(), "Updated invoice 13 (FV/NEW/1)")

	inv, err := env.server.Invoices().Get(13)
	require.NoError(t, err)
	assert.Equal(t, "Gadget", inv.ProductName)
	assert.InDelta(t, 12.5, inv.ProductPrice, 0.001)

	out.Reset()
	require.NoError(t, a.Show(ctx, 13))
	assert.Regexp(t, `Product:\s+Gadget`, out.String())

	require.NoError(t, a.Delete(ctx, 13))
	assert.Contains(t, out.String(), "Deleted invoice 13")
	_, err = env.server.Invoices().Get(13)
	require.ErrorIs(t, err, mockapi.ErrNotFound)
}

func TestApp_AddRejectedByService(t *testing.T) {
	env := newTestEnv(t)
	// seeded invoice numbers look like FV/0001/2026
	input := strings.Join([]string{testPassword, "FV/0001/2026", "1", "2", "Dup", "1"}, "\n") + "\n"
	a, _ := env.app(input)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	err := a.Add(ctx)
	require.ErrorIs(t, err, client.ErrValidation)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Fields, "invoice_number")
}

func TestApp_DeleteCancelled(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testPassword + "\nn\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	require.NoError(t, a.Delete(ctx, 1))
	assert.Contains(t, out.String(), "Cancelled")

	_, err := env.server.Invoices().Get(1)
	require.NoError(t, err)
}

func TestApp_NextPrev(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	require.NoError(t, a.List(ctx, 3))
	require.Error(t, a.Next(ctx))

	out.Reset()
	require.NoError(t, a.Prev(ctx))
	assert.Contains(t, out.String(), "Page 2 of 3")
}

func TestApp_Logout(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "Logged out")

	require.NoError(t, a.Logout(ctx))
	assert.Contains(t, out.String(), "Not logged in")
}

func TestApp_LogoutClearsEvenWhenServerRejects(t *testing.T) {
	env := newTestEnv(t)
	a, _ := env.app(testPassword + "\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, testEmail))
	// expired access token: POST /logout answers 401 and is not retried
	env.clock.Advance(2 * time.Minute)

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Zero(t, env.server.RefreshCount())
}

func TestApp_StatsBeforeRequests(t *testing.T) {
	env := newTestEnv(t)
	a, out := env.app("")

	require.NoError(t, a.Stats())
	assert.Contains(t, out.String(), "No requests yet")
}

func TestNewApp_InvalidURL(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	cfg.APIBaseURL = "ftp://example.com"

	_, err := NewApp(context.Background(), cfg, WithLogger(logging.Nop()))
	require.Error(t, err)
}

func TestNewApp_UnknownStore(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	cfg.SessionStore = "floppy"

	_, err := NewApp(context.Background(), cfg, WithLogger(logging.Nop()))
	require.Error(t, err)
}
