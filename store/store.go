// Package store is the binary-object collaborator surface: opaque locators
// in, bytes out. The engine and scheduler never care where objects live.
package store

import (
	"context"
)

// ObjectStore persists opaque binary objects. Save returns a locator which
// Download and List treat as the only addressing scheme.
type ObjectStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, locator string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
