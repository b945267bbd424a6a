package ratelimit

import "sync"

// Registry owns one limiter per source. Built once at process start and passed
// by reference to everything that fetches. There is no package-level limiter
// state, so two registries never share a window.
type Registry struct {
	mu       sync.Mutex
	defaults Config
	configs  map[string]Config
	limiters map[string]*Limiter
}

func NewRegistry(defaults Config) *Registry {
	return &Registry{
		defaults: defaults,
		configs:  make(map[string]Config),
		limiters: make(map[string]*Limiter),
	}
}

// Configure sets the policy for a source. Must be called before the source's
// first For; reconfiguring a live limiter is not supported.
func (r *Registry) Configure(source string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[source] = cfg
}

// For returns the limiter for source, creating it on first use from the
// configured policy or the registry defaults.
func (r *Registry) For(source string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[source]; ok {
		return l
	}
	cfg, ok := r.configs[source]
	if !ok {
		cfg = r.defaults
	}
	l := NewLimiter(source, cfg)
	r.limiters[source] = l
	return l
}
