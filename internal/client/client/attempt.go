package client

import "context"

// MaxAuthRetries is how many times a request is replayed after a 401.
const MaxAuthRetries = 1

type attemptKey struct{}

// withAttempt marks ctx as belonging to the n-th replay of a request.
// The caller's request is never mutated; replays carry a derived context.
func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

// attemptFrom returns how many times the request carrying ctx has already
// been replayed after a 401. Zero for a first send.
func attemptFrom(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}
