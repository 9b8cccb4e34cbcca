// Package client contains the transport layer of invoicedesk.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     invoice service: Login/Logout/Refresh, CurrentUser, and invoice CRUD.
//  2. A concrete JSON-over-HTTP implementation (see HTTPClient).
//  3. The request interceptor pipeline (see AuthTransport): it attaches the
//     current access token as a bearer credential and, on a 401, asks the
//     TokenSource for one refresh and replays the request exactly once.
//
// # Error Handling
//
// Failures are classified into sentinel kinds that callers match with
// errors.Is: ErrNetwork, ErrUnauthorized, ErrValidation, ErrServer.
// Non-2xx responses surface as *APIError, which unwraps to its kind.
//
// # Concurrency and Contexts
//
// HTTPClient is safe for concurrent use once SetTokenSource has been called.
// All operations accept context.Context and honor cancellation/timeouts.
package client
