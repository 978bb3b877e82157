package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func countingQuery(counter *int) QueryFunc {
	return func(_ context.Context, _ string) (string, bool, error) {
		*counter++
		return "1.0", true, nil
	}
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var calls int
	if _, err := reg.Register("dpkg", "", Capabilities{Query: countingQuery(&calls)}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	kind, err := reg.Lookup("dpkg")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if kind.Name() != "dpkg" || kind.Parent() != "" {
		t.Errorf("kind = %s/%s", kind.Name(), kind.Parent())
	}

	_, err = reg.Lookup("pacman")
	if !IsUnknownProvider(err) {
		t.Errorf("err = %v, want UnknownProviderError", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	if _, err := reg.Register("dpkg", "", Capabilities{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := reg.Register("dpkg", "", Capabilities{})
	if !IsDuplicateProvider(err) {
		t.Errorf("err = %v, want DuplicateProviderError", err)
	}
}

func TestRegisterUnknownParent(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	_, err := reg.Register("apt", "dpkg", Capabilities{})
	if !IsUnknownParent(err) {
		t.Errorf("err = %v, want UnknownParentError", err)
	}
}

func TestCapabilityInheritance(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var parentQueries, childInstalls int
	if _, err := reg.Register("dpkg", "", Capabilities{
		Query: countingQuery(&parentQueries),
	}); err != nil {
		t.Fatalf("Register dpkg: %v", err)
	}

	apt, err := reg.Register("apt", "dpkg", Capabilities{
		Install: func(_ context.Context, _, _ string) error {
			childInstalls++
			return nil
		},
		Latest: func(_ context.Context, _ string) (string, error) {
			return "2.0", nil
		},
		Versionable: SupportEnabled,
		HoldsLatest: SupportEnabled,
	})
	if err != nil {
		t.Fatalf("Register apt: %v", err)
	}

	// Query is inherited from the parent; install is the child's own.
	ctx := context.Background()
	if _, _, err := apt.Query(ctx, "nginx"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if parentQueries != 1 {
		t.Errorf("parent query calls = %d, want 1", parentQueries)
	}
	if err := apt.Install(ctx, "nginx", ""); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if childInstalls != 1 {
		t.Errorf("child install calls = %d, want 1", childInstalls)
	}

	if !apt.Versionable() || !apt.HoldsLatest() {
		t.Error("declared capabilities lost during resolution")
	}
}

func TestCapabilityInheritanceChain(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var queries int
	if _, err := reg.Register("rpm", "", Capabilities{
		Query:       countingQuery(&queries),
		Versionable: SupportEnabled,
	}); err != nil {
		t.Fatalf("Register rpm: %v", err)
	}
	if _, err := reg.Register("yum", "rpm", Capabilities{
		Install: func(_ context.Context, _, _ string) error { return nil },
	}); err != nil {
		t.Fatalf("Register yum: %v", err)
	}
	dnf, err := reg.Register("dnf", "yum", Capabilities{})
	if err != nil {
		t.Fatalf("Register dnf: %v", err)
	}

	// The grandchild sees capabilities from the whole chain.
	if _, _, err := dnf.Query(context.Background(), "httpd"); err != nil {
		t.Fatalf("Query through chain: %v", err)
	}
	if !dnf.Versionable() {
		t.Error("versionable flag should propagate down the chain")
	}
}

func TestChildMasksParentCapability(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	if _, err := reg.Register("rpm", "", Capabilities{Versionable: SupportEnabled}); err != nil {
		t.Fatalf("Register rpm: %v", err)
	}
	yum, err := reg.Register("yum", "rpm", Capabilities{Versionable: SupportDisabled})
	if err != nil {
		t.Fatalf("Register yum: %v", err)
	}
	if yum.Versionable() {
		t.Error("explicit disable must mask the parent's enable")
	}
}

func TestUnsupportedOperations(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	kind, err := reg.Register("bare", "", Capabilities{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	if _, _, err := kind.Query(ctx, "x"); !IsUnsupported(err) {
		t.Errorf("Query err = %v, want unsupported", err)
	}
	if err := kind.Remove(ctx, "x"); !IsUnsupported(err) {
		t.Errorf("Remove err = %v, want unsupported", err)
	}
	if _, err := kind.LatestVersion(ctx, "x"); !IsUnsupported(err) {
		t.Errorf("LatestVersion err = %v, want unsupported", err)
	}
}

func TestVersionInstallRequiresVersionable(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var installs int
	kind, err := reg.Register("dpkg", "", Capabilities{
		Install: func(_ context.Context, _, _ string) error {
			installs++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = kind.Install(context.Background(), "nginx", "1.18.0")
	if !IsUnsupported(err) {
		t.Fatalf("err = %v, want unsupported", err)
	}
	if installs != 0 {
		t.Errorf("install calls = %d, want 0: check must precede the action", installs)
	}
}

func TestResolveDefault(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	if _, err := reg.Register("dpkg", "", Capabilities{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register("apt", "dpkg", Capabilities{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	name, err := reg.ResolveDefault("ubuntu")
	if err != nil {
		t.Fatalf("ResolveDefault: %v", err)
	}
	if name != "apt" {
		t.Errorf("default for ubuntu = %q, want apt", name)
	}

	// Resolution is idempotent.
	again, err := reg.ResolveDefault("ubuntu")
	if err != nil || again != name {
		t.Errorf("second resolution = %q, %v", again, err)
	}

	_, err = reg.ResolveDefault("plan9")
	if !IsNoDefault(err) {
		t.Errorf("err = %v, want NoDefaultError", err)
	}

	// A known platform whose default kind is not registered fails too.
	_, err = reg.ResolveDefault("fedora")
	if !IsUnknownProvider(err) {
		t.Errorf("err = %v, want UnknownProviderError for unregistered dnf", err)
	}
}

func TestNamesSorted(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	for _, name := range []string{"yum", "apt", "dnf"} {
		if _, err := reg.Register(name, "", Capabilities{}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	names := reg.Names()
	want := []string{"apt", "dnf", "yum"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestLatestVersionMemoized(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	var lookups int
	kind, err := reg.Register("apt", "", Capabilities{
		Latest: func(_ context.Context, _ string) (string, error) {
			lookups++
			return "2.0", nil
		},
		HoldsLatest: SupportEnabled,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := kind.LatestVersion(ctx, "nginx")
		if err != nil {
			t.Fatalf("LatestVersion: %v", err)
		}
		if v != "2.0" {
			t.Errorf("LatestVersion = %q", v)
		}
	}
	if lookups != 1 {
		t.Errorf("lookups = %d, want 1", lookups)
	}

	// A different package is a different memo key.
	if _, err := kind.LatestVersion(ctx, "vim"); err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if lookups != 2 {
		t.Errorf("lookups = %d, want 2", lookups)
	}
}

func TestLatestVersionErrorNotCached(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	fail := true
	kind, err := reg.Register("apt", "", Capabilities{
		Latest: func(_ context.Context, _ string) (string, error) {
			if fail {
				return "", errors.New("index refresh failed")
			}
			return "2.0", nil
		},
		HoldsLatest: SupportEnabled,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := context.Background()
	if _, err := kind.LatestVersion(ctx, "nginx"); err == nil {
		t.Fatal("expected the first lookup to fail")
	}

	fail = false
	v, err := kind.LatestVersion(ctx, "nginx")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if v != "2.0" {
		t.Errorf("retry = %q, want 2.0", v)
	}
}
