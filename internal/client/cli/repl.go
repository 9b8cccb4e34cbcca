package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, email string) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	List(ctx context.Context, page int) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Show(ctx context.Context, id int64) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	Stats() error
}

// Run starts the interactive loop and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "invoicedesk (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit" or "quit". Command errors are printed and the loop goes on.
//
//	Not logged in:
//	  help, login [email], stats, exit | quit
//
//	Logged in:
//	  help, whoami, (l)ist [page], next, prev, show <id>, add,
//	  edit <id>, delete <id>, stats, logout, exit | quit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "invoicedesk %s> ", statusFn())

		line, err := readLine(reader)
		if err != nil {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: whoami, (l)ist [page], next, prev, show <id>, add, edit <id>, delete <id>, stats, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login [email], stats, exit")
			}
			continue

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args); err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
	}
}

var errUnknownCommand = errors.New("unknown command")

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "login":
		email := ""
		if len(args) > 0 {
			email = args[0]
		}
		return a.Login(ctx, email)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "l", "list":
		page := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("usage: list [page]")
			}
			page = n
		}
		return a.List(ctx, page)
	case "next":
		return a.Next(ctx)
	case "prev":
		return a.Prev(ctx)
	case "show", "edit", "delete":
		if len(args) == 0 {
			return fmt.Errorf("usage: %s <id>", cmd)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id < 1 {
			return fmt.Errorf("usage: %s <id>", cmd)
		}
		switch cmd {
		case "show":
			return a.Show(ctx, id)
		case "edit":
			return a.Edit(ctx, id)
		default:
			return a.Delete(ctx, id)
		}
	case "add":
		return a.Add(ctx)
	case "stats":
		return a.Stats()
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}
