package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/invoicedesk/internal/client/client"
	"github.com/dmitrijs2005/invoicedesk/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials unless email is given, then authenticates.
// Wrong credentials are reported as such; other failures are returned
// unchanged.
func (a *App) Login(ctx context.Context, email string) error {
	var err error
	if email == "" {
		email, err = getSimpleText(a.reader, "Enter email", a.out)
		if err != nil {
			return err
		}
	}

	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	// only the read buffer; string(password) below is a separate copy
	defer shared.Wipe(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return errors.New("login failed: wrong email or password")
		}
		return err
	}

	a.printf("Logged in as %s\n", email)
	return nil
}

// Logout never fails: a server error is logged and the local session is
// cleared regardless.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.printf("Not logged in\n")
		return nil
	}
	a.session.Logout(ctx)
	a.printf("Logged out\n")
	return nil
}

// WhoAmI reloads and prints the current user.
func (a *App) WhoAmI(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	u, err := a.session.FetchUser(ctx)
	if err != nil {
		return err
	}

	a.printf("ID:    %d\nName:  %s\nEmail: %s\n", u.ID, u.Name, u.Email)
	if exp := a.session.TokenExpiry(); !exp.IsZero() {
		a.printf("Token expires: %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}
