package membership

import "github.com/goliatone/go-repository-cache/cache"

// ResolverOption configures membership resolver construction.
type ResolverOption func(*ResolverOptions)

// ResolverOptions captures optional behavior for membership reads.
type ResolverOptions struct {
	CacheEnabled bool
	CacheConfig  *cache.Config
}

// WithCache toggles the read cache decorator on the membership store.
// Cached entries only affect reads; grants always take effect on the next
// uncached resolution.
func WithCache(enabled bool) ResolverOption {
	return func(opts *ResolverOptions) {
		if opts == nil {
			return
		}
		opts.CacheEnabled = enabled
	}
}

// WithCacheConfig supplies the cache configuration to use when caching is
// enabled.
func WithCacheConfig(cfg cache.Config) ResolverOption {
	return func(opts *ResolverOptions) {
		if opts == nil {
			return
		}
		opts.CacheConfig = &cfg
	}
}

func applyResolverOptions(options []ResolverOption) ResolverOptions {
	var opts ResolverOptions
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&opts)
	}
	return opts
}
