package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrNetwork      = errors.New("network error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")
	ErrServer       = errors.New("server error")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// APIError is a non-2xx response from the invoice service.
type APIError struct {
	Status  int
	Message string
	// Fields carries per-field validation messages, when the service sends them.
	Fields map[string][]string
	Kind   error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// KindForStatus classifies an HTTP status code.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrServer
	}
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// mapError turns a non-2xx response into an *APIError. The body is read but
// not closed.
func mapError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Kind: KindForStatus(resp.StatusCode)}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		apiErr.Fields = body.Errors
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func decodeError(what string, err error) error {
	return fmt.Errorf("%w: decode %s: %w", ErrServer, what, err)
}
