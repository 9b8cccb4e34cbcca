package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/dmitrijs2005/invoicedesk/internal/client/metrics"
	"github.com/dmitrijs2005/invoicedesk/internal/logging"
)

// RequestIDHeader carries an id shared by a request and its replay.
const RequestIDHeader = "X-Request-ID"

// maxBufferedBody is how much of a 401 body is read ahead of the refresh.
// Anything past it stays unread on the original body.
const maxBufferedBody = 1 << 20

// TokenSource supplies the current access token and performs the
// deduplicated session refresh.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// AuthTransport is the request interceptor pipeline.
//
// Outbound, it sets "Authorization: Bearer <token>" when a token is present.
// Inbound, when RetryUnauthorized is set, a 401 on a first attempt triggers
// one Tokens.Refresh and one replay of the original request with the new
// token. The replay's outcome is returned. When the refresh fails, or the
// body cannot be replayed, the original 401 response is returned unchanged.
type AuthTransport struct {
	Base              http.RoundTripper
	Tokens            TokenSource
	RetryUnauthorized bool
	Logger            logging.Logger
	Metrics           *metrics.Metrics
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt := attemptFrom(ctx)

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp, err := t.send(req, t.currentToken(), requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !t.RetryUnauthorized || t.Tokens == nil {
		return resp, nil
	}

	log := t.logger().With("request_id", requestID, "method", req.Method, "path", req.URL.Path)

	if attempt >= MaxAuthRetries {
		log.Debug(ctx, "unauthorized after replay, surfacing response", "attempt", attempt)
		return resp, nil
	}
	if !replayable(req) {
		log.Warn(ctx, "unauthorized response for a request whose body cannot be replayed")
		t.Metrics.ObserveRetry(metrics.RetryNotReplayable)
		return resp, nil
	}

	original, err := bufferBody(resp)
	if err != nil {
		return nil, err
	}

	token, err := t.Tokens.Refresh(ctx)
	if err != nil {
		log.Warn(ctx, "session refresh failed, surfacing original unauthorized response", "error", err)
		t.Metrics.ObserveRetry(metrics.RetryRefreshFailed)
		return original, nil
	}

	replay := req.Clone(withAttempt(ctx, attempt+1))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			log.Warn(ctx, "cannot rewind request body", "error", err)
			t.Metrics.ObserveRetry(metrics.RetryNotReplayable)
			return original, nil
		}
		replay.Body = body
	}

	_ = original.Body.Close()

	log.Debug(ctx, "replaying request with refreshed token", "attempt", attempt+1)
	resp, err = t.send(replay, token, requestID)
	if err != nil {
		t.Metrics.ObserveRetry(metrics.RetryFailure)
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		t.Metrics.ObserveRetry(metrics.RetryFailure)
	} else {
		t.Metrics.ObserveRetry(metrics.RetrySuccess)
	}
	return resp, nil
}

// send clones req, decorates the clone and hands it to the base transport.
func (t *AuthTransport) send(req *http.Request, token, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.Metrics.ObserveResponse(resp.StatusCode)
	return resp, nil
}

func (t *AuthTransport) currentToken() string {
	if t.Tokens == nil {
		return ""
	}
	return t.Tokens.AccessToken()
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *AuthTransport) logger() logging.Logger {
	if t.Logger == nil {
		return logging.Nop()
	}
	return t.Logger
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// bufferBody reads up to maxBufferedBody of resp.Body ahead so the
// connection is not held by a small error body during the refresh. A longer
// body keeps its unread remainder and must still be closed by the caller.
func bufferBody(resp *http.Response) (*http.Response, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody))
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	if len(b) < maxBufferedBody {
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(b))
		return resp, nil
	}

	resp.Body = prefixedBody{
		Reader: io.MultiReader(bytes.NewReader(b), resp.Body),
		Closer: resp.Body,
	}
	return resp, nil
}

type prefixedBody struct {
	io.Reader
	io.Closer
}
