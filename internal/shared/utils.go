// Package shared holds helpers for handling secrets in memory.
package shared

// Wipe zeroes b, e.g. a password once it has been sent. A nil slice is
// left alone.
func Wipe(b []byte) {
	clear(b)
}
