// Package cli provides the invoicedesk command-line client.
//
// It wires configuration, the local session store, the HTTP client and the
// session into an App, and exposes it both as one-shot cobra subcommands
// (login, logout, whoami, invoices list) and as an interactive REPL started
// by the root command.
//
// Key features:
//   - Login / Logout / Whoami, with the session persisted between runs
//   - Paginated invoice listing (list, next, prev)
//   - Show / Add / Edit / Delete invoices
//   - Stats: refresh and retry counters of the current process
package cli
