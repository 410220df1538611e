// Package metadata is a key/value slot table in the local client database.
// The session credential lives here.
package metadata

import (
	"context"
)

// Repository stores string values under string keys. A missing key is
// reported with ok == false, never as an error.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
