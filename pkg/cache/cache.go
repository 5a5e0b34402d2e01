// Package cache provides caching for optimized graphs and rendered
// artifacts.
//
// Two backends are provided: [FileCache] for CLI usage and [RedisCache] for
// service deployments. [NullCache] disables caching entirely. Keys are built
// by a [Keyer] so that callers never concatenate hash material by hand, and
// [ScopedKeyer] prefixes keys for multi-tenant isolation.
package cache

import (
	"context"
	"time"
)

// Cache is the interface all cache backends implement. Values are opaque
// byte slices; callers serialize their own payloads.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// found; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL stores the value
	// without expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs per payload kind.
const (
	// TTLOptimized is the retention of optimized graphs. The optimizer is
	// deterministic, so entries only go stale when the policy file behind
	// their policy hash is edited in place.
	TTLOptimized = 7 * 24 * time.Hour

	// TTLArtifact is the retention of rendered SVG artifacts.
	TTLArtifact = 24 * time.Hour
)

// ArtifactKeyOpts captures the render options that distinguish artifacts of
// the same graph.
type ArtifactKeyOpts struct {
	Format   string // "dot" or "svg"
	Detailed bool
}

// Keyer generates cache keys for the payload kinds castflow stores.
type Keyer interface {
	// GraphKey generates a key for an optimized graph, derived from the
	// hash of the serialized input graph and the hash of the policy.
	GraphKey(graphHash, policyHash string) string

	// ArtifactKey generates a key for a rendered artifact of the graph
	// with the given hash.
	ArtifactKey(graphHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// GraphKey generates a key for an optimized graph.
func (k *DefaultKeyer) GraphKey(graphHash, policyHash string) string {
	return hashKey("opt", graphHash, policyHash)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", graphHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
