package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/invoicedesk/internal/client/config"
)

// Version is set at build time with -ldflags "-X .../cli.Version=...".
var Version = "dev"

type rootState struct {
	app *App
	in  io.Reader
	out io.Writer
}

// NewRootCmd builds the invoicedesk command tree. Without a subcommand the
// interactive REPL is started.
func NewRootCmd() *cobra.Command {
	st := &rootState{}

	cmd := &cobra.Command{
		Use:           "invoicedesk",
		Short:         "Command-line client for the invoice service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			st.in, st.out = cmd.InOrStdin(), cmd.OutOrStdout()
			app, err := NewApp(cmd.Context(), cfg, WithIO(st.in, st.out))
			if err != nil {
				return err
			}
			st.app = app
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.app == nil {
				return nil
			}
			return st.app.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			st.app.Run(cmd.Context())
			return nil
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newLoginCmd(st),
		newLogoutCmd(st),
		newWhoAmICmd(st),
		newInvoicesCmd(st),
	)
	return cmd
}

func newLoginCmd(st *rootState) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.app.Login(cmd.Context(), email)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

func newLogoutCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.app.Logout(cmd.Context())
		},
	}
}

func newWhoAmICmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.app.WhoAmI(cmd.Context())
		},
	}
}

func newInvoicesCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Work with invoices",
	}

	var page int
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.app.List(cmd.Context(), page)
		},
	}
	list.Flags().IntVarP(&page, "page", "p", 1, "page number")

	cmd.AddCommand(list)
	return cmd
}
