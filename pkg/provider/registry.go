package provider

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// defaultKinds is the fixed platform-identifier to provider-kind table used by
// ResolveDefault. Unlisted platforms have no default and callers must name a
// kind explicitly.
var defaultKinds = map[string]string{
	"debian":    "apt",
	"ubuntu":    "apt",
	"raspbian":  "apt",
	"linuxmint": "apt",
	"redhat":    "yum",
	"rhel":      "yum",
	"centos":    "yum",
	"rocky":     "yum",
	"almalinux": "yum",
	"amazon":    "yum",
	"fedora":    "dnf",
	"solaris":   "sun",
}

// Registry is the process-wide catalog of provider kinds. It is populated
// during startup, single-threaded, and read-only thereafter; lookups from
// concurrent resource evaluations need no external coordination.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// kinds maps kind name to the registered kind.
	kinds map[string]*Kind

	// resolved caches platform default resolution per identifier.
	resolved map[string]string

	// cache is the shared latest-version memo handed to every kind.
	cache *latestCache

	logger zerolog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		kinds:    make(map[string]*Kind),
		resolved: make(map[string]string),
		cache:    newLatestCache(),
		logger:   logger.With().Str("component", "provider-registry").Logger(),
	}
}

// Register adds a provider kind under a unique name. A non-empty parent must
// already be registered; the new kind's effective capability set is the
// parent's effective set overridden by the explicitly supplied capabilities.
// Registration failures are registry misconfiguration and fatal at startup.
func (r *Registry) Register(name, parent string, caps Capabilities) (*Kind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[name]; exists {
		return nil, &DuplicateProviderError{Name: name}
	}

	effective := caps
	if parent != "" {
		parentKind, exists := r.kinds[parent]
		if !exists {
			return nil, &UnknownParentError{Name: name, Parent: parent}
		}
		// The parent's caps are already fully resolved, so one level of
		// overriding resolves the whole chain.
		effective = caps.resolve(parentKind.caps)
	}

	kind := &Kind{
		name:   name,
		parent: parent,
		caps:   effective,
		cache:  r.cache,
	}
	r.kinds[name] = kind

	r.logger.Debug().
		Str("kind", name).
		Str("parent", parent).
		Bool("versionable", kind.Versionable()).
		Bool("holds_latest", kind.HoldsLatest()).
		Msg("Registered provider kind")

	return kind, nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (*Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, exists := r.kinds[name]
	if !exists {
		return nil, &UnknownProviderError{Name: name}
	}
	return kind, nil
}

// ResolveDefault returns the default provider-kind name for a platform
// identifier. The answer is a pure function of the identifier, cached after
// the first resolution; re-resolving the same platform is idempotent. The
// resolved kind must itself be registered.
func (r *Registry) ResolveDefault(platform string) (string, error) {
	r.mu.RLock()
	if name, ok := r.resolved[platform]; ok {
		r.mu.RUnlock()
		return name, nil
	}
	r.mu.RUnlock()

	name, ok := defaultKinds[platform]
	if !ok {
		return "", &NoDefaultError{Platform: platform}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[name]; !exists {
		return "", &UnknownProviderError{Name: name}
	}
	r.resolved[platform] = name
	return name, nil
}

// Names returns the registered kind names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
