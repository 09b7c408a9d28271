package dispatcher

import "github.com/dshills/actionroute/internal/dispatcher/cache"

// Config holds dispatcher configuration options.
type Config struct {
	// Dimensions are the routing dimension names in traversal order.
	// Empty and duplicate names are dropped with a logged warning.
	Dimensions []string

	// CacheEnabled enables the resolution cache.
	CacheEnabled bool

	// CacheCapacity bounds the number of cached resolutions.
	// Non-positive values fall back to cache.DefaultCapacity.
	CacheCapacity int

	// EnableMetrics enables dispatch timing and statistics collection.
	EnableMetrics bool
}

// DefaultConfig returns a configuration with no dimensions and the cache off.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:  false,
		CacheCapacity: cache.DefaultCapacity,
		EnableMetrics: false,
	}
}

// WithDimensions returns a copy of the config with the given dimensions.
func (c Config) WithDimensions(names ...string) Config {
	c.Dimensions = append([]string(nil), names...)
	return c
}

// WithCache returns a copy of the config with the cache enabled.
// A non-positive capacity keeps the configured one.
func (c Config) WithCache(capacity int) Config {
	c.CacheEnabled = true
	if capacity > 0 {
		c.CacheCapacity = capacity
	}
	return c
}

// WithoutCache returns a copy of the config with the cache disabled.
func (c Config) WithoutCache() Config {
	c.CacheEnabled = false
	return c
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}
