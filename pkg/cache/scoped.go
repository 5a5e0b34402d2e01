package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// The optimize service uses it to give every API client a separate cache
// namespace while the CLI keeps unprefixed keys.
//
// Example usage:
//
//	// Client-specific keys
//	clientKeyer := NewScopedKeyer(NewDefaultKeyer(), "client:abc123:")
//
//	// Shared keys
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphKey generates a prefixed key for an optimized graph.
func (k *ScopedKeyer) GraphKey(graphHash, policyHash string) string {
	return k.prefix + k.inner.GraphKey(graphHash, policyHash)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, opts)
}
