package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec records every call the REPL makes.
type fakeExec struct {
	loggedIn bool
	calls    []string
	err      error
}

func (f *fakeExec) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) Login(_ context.Context, email string) error {
	f.loggedIn = true
	return f.record("login %s", email)
}

func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}

func (f *fakeExec) WhoAmI(context.Context) error { return f.record("whoami") }
func (f *fakeExec) List(_ context.Context, page int) error { return f.record("list %d", page) }
func (f *fakeExec) Next(context.Context) error { return f.record("next") }
func (f *fakeExec) Prev(context.Context) error { return f.record("prev") }
func (f *fakeExec) Show(_ context.Context, id int64) error { return f.record("show %d", id) }
func (f *fakeExec) Add(context.Context) error { return f.record("add") }
func (f *fakeExec) Edit(_ context.Context, id int64) error { return f.record("edit %d", id) }
func (f *fakeExec) Delete(_ context.Context, id int64) error { return f.record("delete %d", id) }
func (f *fakeExec) Stats() error { return f.record("stats") }

func runScript(t *testing.T, f *fakeExec, script string) string {
	t.Helper()
	var out bytes.Buffer
	runREPL(context.Background(), f, func() string { return "(test)" }, bufio.NewReader(strings.NewReader(script)), &out)
	return out.String()
}

func TestREPL_Dispatch(t *testing.T) {
	f := &fakeExec{}
	script := strings.Join([]string{
		"login a@b.c",
		"",
		"list",
		"l 3",
		"next",
		"prev",
		"show 7",
		"add",
		"edit 8",
		"delete 9",
		"whoami",
		"stats",
		"logout",
		"exit",
		"list",
	}, "\n") + "\n"

	out := runScript(t, f, script)

	assert.Equal(t, []string{
		"login a@b.c",
		"list 1",
		"list 3",
		"next",
		"prev",
		"show 7",
		"add",
		"edit 8",
		"delete 9",
		"whoami",
		"stats",
		"logout",
	}, f.calls)
	assert.Contains(t, out, "invoicedesk (test)> ")
	assert.Contains(t, out, "Bye!")
}

func TestREPL_UsageErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"list zero", "usage: list [page]"},
		{"list 0", "usage: list [page]"},
		{"show", "usage: show <id>"},
		{"edit x", "usage: edit <id>"},
		{"delete -1", "usage: delete <id>"},
		{"frobnicate", "unknown command: frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := &fakeExec{}
			out := runScript(t, f, tt.line+"\n")
			assert.Contains(t, out, "Error: "+tt.want)
			assert.Empty(t, f.calls)
		})
	}
}

func TestREPL_CommandErrorDoesNotStopLoop(t *testing.T) {
	f := &fakeExec{err: errors.New("boom")}
	out := runScript(t, f, "whoami\nstats\n")

	assert.Equal(t, []string{"whoami", "stats"}, f.calls)
	assert.Equal(t, 2, strings.Count(out, "Error: boom"))
}

func TestREPL_HelpDependsOnLogin(t *testing.T) {
	out := runScript(t, &fakeExec{}, "help\n")
	assert.Contains(t, out, "login [email]")
	assert.NotContains(t, out, "logout")

	out = runScript(t, &fakeExec{loggedIn: true}, "help\n")
	assert.Contains(t, out, "logout")
}

func TestREPL_StopsOnEOFAndCancel(t *testing.T) {
	f := &fakeExec{}
	runScript(t, f, "whoami")
	assert.Equal(t, []string{"whoami"}, f.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	runREPL(ctx, f, func() string { return "" }, bufio.NewReader(strings.NewReader("whoami\n")), &out)
	assert.Empty(t, out.String())
}

func TestApp_Run(t *testing.T) {
	env := newTestEnv(t)
	script := strings.Join([]string{
		"login " + testEmail,
		testPassword,
		"list 2",
		"show 6",
		"logout",
		"list",
		"quit",
	}, "\n") + "\n"
	a, out := env.app(script)

	a.Run(context.Background())

	s := out.String()
	require.Contains(t, s, "Logged in as "+testEmail)
	assert.Contains(t, s, "invoicedesk ("+testEmail+")> ")
	assert.Contains(t, s, "Page 2 of 3")
	assert.Contains(t, s, "FV/0006/2026")
	assert.Contains(t, s, "Logged out")
	assert.Contains(t, s, "Error: not logged in")
	assert.Contains(t, s, "Bye!")
}
