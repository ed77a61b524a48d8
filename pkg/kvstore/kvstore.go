// Package kvstore is the ephemeral, TTL-capable string store shared by all
// service instances. Pairing tokens and consumed refresh-token ids live here.
package kvstore

import (
	"context"
	"net/http"
	"time"

	"github.com/Abraxas-365/identity/pkg/errx"
)

// Store is safe for concurrent use. A ttl of zero means no expiry.
// Deleting a key that does not exist is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// GetDel returns the value and removes the key in one atomic step.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// SetNX writes only when the key is absent and reports whether it wrote.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

var ErrRegistry = errx.NewRegistry("KV")

var CodeUnavailable = ErrRegistry.Register("UNAVAILABLE", errx.TypeExternal, http.StatusServiceUnavailable, "Key-value store unavailable")

func ErrUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUnavailable, cause)
}
