// Package cache implements the named-namespace cache collaborator of spec
// §6: the engine invalidates the API's namespace after each discipline
// that produced new Points (spec §5), dropping whatever was cached for a
// discipline it just recomputed.
package cache

import "context"

// Cache is a named-namespace invalidation surface. The engine only ever
// clears; it never populates the cache itself.
type Cache interface {
	// Clear evicts every entry under namespace (e.g. an upgrade-discipline
	// tag).
	Clear(ctx context.Context, namespace string) error

	// Get and Set read and write one entry under namespace. Nothing in
	// this repository calls them: internal/api serves every read straight
	// from storage.
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error

	Close() error
}
