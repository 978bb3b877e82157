package provider

import "context"

// Kind is one registered provider kind with its effective capability set.
// Kinds are created by Registry.Register, never mutated afterwards, and safe
// for concurrent use.
type Kind struct {
	name   string
	parent string
	caps   Capabilities
	cache  *latestCache
}

// Name returns the unique kind name.
func (k *Kind) Name() string { return k.name }

// Parent returns the parent kind name, or "" for a root kind.
func (k *Kind) Parent() string { return k.parent }

// Versionable reports whether the kind supports exact-version installs.
func (k *Kind) Versionable() bool { return k.caps.Versionable == SupportEnabled }

// HoldsLatest reports whether the kind supports the "latest" desired value.
// A kind without a latest-version capability never holds latest.
func (k *Kind) HoldsLatest() bool {
	return k.caps.HoldsLatest == SupportEnabled && k.caps.Latest != nil
}

// Query retrieves the observed state of a package through the kind's query
// capability.
func (k *Kind) Query(ctx context.Context, name string) (string, bool, error) {
	if k.caps.Query == nil {
		return "", false, &UnsupportedOperationError{Kind: k.name, Operation: "query"}
	}
	return k.caps.Query(ctx, name)
}

// Install installs a package. A non-empty version requires the kind to be
// versionable; the capability is checked before any action is attempted.
func (k *Kind) Install(ctx context.Context, name, version string) error {
	if k.caps.Install == nil {
		return &UnsupportedOperationError{Kind: k.name, Operation: "install"}
	}
	if version != "" && !k.Versionable() {
		return &UnsupportedOperationError{Kind: k.name, Operation: "version-install"}
	}
	return k.caps.Install(ctx, name, version)
}

// Remove removes a package.
func (k *Kind) Remove(ctx context.Context, name string) error {
	if k.caps.Remove == nil {
		return &UnsupportedOperationError{Kind: k.name, Operation: "remove"}
	}
	return k.caps.Remove(ctx, name)
}

// Update updates an installed package to the newest available version.
func (k *Kind) Update(ctx context.Context, name string) error {
	if k.caps.Update == nil {
		return &UnsupportedOperationError{Kind: k.name, Operation: "update"}
	}
	return k.caps.Update(ctx, name)
}

// LatestVersion reports the newest available version of a package. Results
// are memoized process-wide per (kind, package); concurrent queries for the
// same key are serialized and errors are not cached.
func (k *Kind) LatestVersion(ctx context.Context, name string) (string, error) {
	if !k.HoldsLatest() {
		return "", &UnsupportedOperationError{Kind: k.name, Operation: "latest"}
	}
	if k.cache == nil {
		return k.caps.Latest(ctx, name)
	}
	return k.cache.get(ctx, k.name, name, k.caps.Latest)
}
