package mockapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

func writeValidation(w http.ResponseWriter, verr *ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Message: "The given data was invalid.",
		Errors:  verr.Fields,
	})
}

// authenticate rejects requests without a valid bearer access token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		userID, err := s.tokens.VerifyAccess(raw)
		switch {
		case errors.Is(err, ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/api",
		MaxAge:   int(s.cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	verr := &ValidationError{}
	if strings.TrimSpace(creds.Email) == "" {
		verr.add("email", "The email field is required.")
	}
	if creds.Password == "" {
		verr.add("password", "The password field is required.")
	}
	if len(verr.Fields) > 0 {
		writeValidation(w, verr)
		return
	}

	emailOK := strings.EqualFold(strings.TrimSpace(creds.Email), s.user.Email)
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(s.cfg.UserPassword)) == 1
	if !emailOK || !passOK {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, err := s.tokens.IssueAccess(s.user.ID)
	if err != nil {
		s.logger.Error(r.Context(), "failed to issue access token", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not issue token.")
		return
	}
	s.setRefreshCookie(w, s.tokens.IssueRefresh(s.user.ID))

	user := s.user
	writeJSON(w, http.StatusOK, models.LoginResult{AccessToken: access, User: &user})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	userID, next, err := s.tokens.Rotate(cookie.Value)
	if err != nil {
		clearRefreshCookie(w)
		msg := "Invalid refresh token"
		if errors.Is(err, ErrTokenExpired) {
			msg = "Refresh token expired"
		}
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		s.logger.Error(r.Context(), "failed to issue access token", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not issue token.")
		return
	}

	s.refreshes.Add(1)
	s.setRefreshCookie(w, next)
	writeJSON(w, http.StatusOK, models.RefreshResult{AccessToken: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		s.tokens.Revoke(cookie.Value)
	}
	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if id, _ := r.Context().Value(ctxKey{}).(int64); id != s.user.ID {
		writeError(w, http.StatusNotFound, "User not found.")
		return
	}
	writeJSON(w, http.StatusOK, s.user)
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	page, okPage := queryInt(r, "page")
	perPage, okPer := queryInt(r, "per_page")
	if !okPage || !okPer {
		writeError(w, http.StatusBadRequest, "page and per_page must be positive integers.")
		return
	}
	writeJSON(w, http.StatusOK, s.invoices.List(page, perPage))
}

func invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, "Invoice not found.")
		return 0, false
	}
	return id, true
}

func decodeInvoice(w http.ResponseWriter, r *http.Request) (models.Invoice, bool) {
	var inv models.Invoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return models.Invoice{}, false
	}
	return inv, true
}

// writeStoreError maps InvoiceStore errors to responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Invoice not found.")
	default:
		s.logger.Error(r.Context(), "invoice store failure", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error.")
	}
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Get(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInvoice(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Create(in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInvoice(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Update(id, in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	if err := s.invoices.Delete(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
