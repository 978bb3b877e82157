package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// fakeBackend simulates one package manager and counts provider calls.
type fakeBackend struct {
	installed map[string]string
	latest    map[string]string

	queries   int
	installs  int
	removes   int
	updates   int
	latests   int
	actionErr error
}

func (b *fakeBackend) capabilities() provider.Capabilities {
	return provider.Capabilities{
		Query: func(_ context.Context, name string) (string, bool, error) {
			b.queries++
			v, ok := b.installed[name]
			return v, ok, nil
		},
		Install: func(_ context.Context, name, version string) error {
			b.installs++
			if b.actionErr != nil {
				return b.actionErr
			}
			if version == "" {
				version = b.latest[name]
			}
			b.installed[name] = version
			return nil
		},
		Remove: func(_ context.Context, name string) error {
			b.removes++
			if b.actionErr != nil {
				return b.actionErr
			}
			delete(b.installed, name)
			return nil
		},
		Update: func(_ context.Context, name string) error {
			b.updates++
			if b.actionErr != nil {
				return b.actionErr
			}
			b.installed[name] = b.latest[name]
			return nil
		},
		Latest: func(_ context.Context, name string) (string, error) {
			b.latests++
			return b.latest[name], nil
		},
		Versionable: provider.SupportEnabled,
		HoldsLatest: provider.SupportEnabled,
	}
}

func newTestState(t *testing.T, backend *fakeBackend, caps provider.Capabilities, should ...Ensure) (*State, *Resource) {
	t.Helper()
	if backend.installed == nil {
		backend.installed = map[string]string{}
	}
	if backend.latest == nil {
		backend.latest = map[string]string{}
	}

	reg := provider.NewRegistry(zerolog.Nop())
	kind, err := reg.Register("fake", "", caps)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := &Resource{Type: "package", Title: "nginx", Should: should}
	return NewState(res, kind), res
}

func TestRetrieveCachesObservation(t *testing.T) {
	backend := &fakeBackend{installed: map[string]string{"nginx": "1.24.0"}}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsurePresent})

	if state.Phase() != PhaseUnevaluated || state.Is() != ValueUnknown {
		t.Fatalf("fresh state: phase=%s is=%q", state.Phase(), state.Is())
	}

	ctx := context.Background()
	if err := state.Retrieve(ctx); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if state.Is() != "1.24.0" {
		t.Errorf("Is() = %q, want 1.24.0", state.Is())
	}
	if state.Phase() != PhaseRetrieved {
		t.Errorf("phase = %s, want retrieved", state.Phase())
	}

	// Second retrieval must not hit the provider again.
	if err := state.Retrieve(ctx); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if backend.queries != 1 {
		t.Errorf("queries = %d, want 1", backend.queries)
	}
}

func TestRetrieveAbsentSentinel(t *testing.T) {
	backend := &fakeBackend{}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsurePresent})

	if err := state.Retrieve(context.Background()); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if state.Is() != ValueAbsent {
		t.Errorf("Is() = %q, want %q", state.Is(), ValueAbsent)
	}
}

func TestInSyncOrderedShortCircuit(t *testing.T) {
	// "present" is first and the package is installed, so the later
	// "latest" value must never be consulted.
	backend := &fakeBackend{
		installed: map[string]string{"nginx": "1.20.0"},
		latest:    map[string]string{"nginx": "1.24.0"},
	}
	state, _ := newTestState(t, backend, backend.capabilities(),
		Ensure{Kind: EnsurePresent}, Ensure{Kind: EnsureLatest})

	insync, err := state.InSync(context.Background())
	if err != nil {
		t.Fatalf("InSync: %v", err)
	}
	if !insync {
		t.Error("installed package should satisfy present")
	}
	if state.Phase() != PhaseInSync {
		t.Errorf("phase = %s, want insync", state.Phase())
	}
	if backend.latests != 0 {
		t.Errorf("latest lookups = %d, want 0: short-circuit ignored order", backend.latests)
	}
}

func TestInSyncAcceptsAnyDeclaredValue(t *testing.T) {
	backend := &fakeBackend{installed: map[string]string{"nginx": "1.20.0"}}
	state, _ := newTestState(t, backend, backend.capabilities(),
		Ensure{Kind: EnsureVersion, Version: "1.18.0"},
		Ensure{Kind: EnsureVersion, Version: "1.20.0"})

	insync, err := state.InSync(context.Background())
	if err != nil {
		t.Fatalf("InSync: %v", err)
	}
	if !insync {
		t.Error("observed version matches the second declared value")
	}
}

func TestInSyncPresentRequiresInstalled(t *testing.T) {
	backend := &fakeBackend{}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsurePresent})

	insync, err := state.InSync(context.Background())
	if err != nil {
		t.Fatalf("InSync: %v", err)
	}
	if insync {
		t.Error("absent package should be out of sync with present")
	}
	if state.Phase() != PhaseOutOfSync {
		t.Errorf("phase = %s, want outofsync", state.Phase())
	}
}

func TestInSyncLatestMatches(t *testing.T) {
	backend := &fakeBackend{
		installed: map[string]string{"nginx": "1.24.0"},
		latest:    map[string]string{"nginx": "1.24.0"},
	}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsureLatest})

	insync, err := state.InSync(context.Background())
	if err != nil {
		t.Fatalf("InSync: %v", err)
	}
	if !insync {
		t.Error("package at the latest version should be in sync")
	}
}

func TestInSyncLatestKeepsLookup(t *testing.T) {
	backend := &fakeBackend{
		installed: map[string]string{"nginx": "1.20.0"},
		latest:    map[string]string{"nginx": "1.24.0"},
	}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsureLatest})

	insync, err := state.InSync(context.Background())
	if err != nil {
		t.Fatalf("InSync: %v", err)
	}
	if insync {
		t.Error("stale package should be out of sync with latest")
	}
	if state.Phase() != PhaseOutOfSync {
		t.Errorf("phase = %s, want outofsync", state.Phase())
	}
	if state.Latest() != "1.24.0" {
		t.Errorf("Latest() = %q, want 1.24.0", state.Latest())
	}
}

func TestSyncInstall(t *testing.T) {
	backend := &fakeBackend{latest: map[string]string{"nginx": "1.24.0"}}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsurePresent})

	event, err := state.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if event != EventInstalled {
		t.Errorf("event = %q, want installed", event)
	}
	if state.Phase() != PhaseSynced {
		t.Errorf("phase = %s, want synced", state.Phase())
	}
	if backend.installs != 1 {
		t.Errorf("installs = %d, want 1", backend.installs)
	}
}

func TestSyncRemove(t *testing.T) {
	backend := &fakeBackend{installed: map[string]string{"nginx": "1.24.0"}}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsureAbsent})

	event, err := state.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if event != EventRemoved {
		t.Errorf("event = %q, want removed", event)
	}
}

func TestSyncLatestInstallsWhenAbsent(t *testing.T) {
	backend := &fakeBackend{latest: map[string]string{"nginx": "1.24.0"}}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsureLatest})

	event, err := state.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if event != EventInstalled {
		t.Errorf("event = %q, want installed for an absent package", event)
	}
	if backend.updates != 0 {
		t.Errorf("updates = %d, want 0", backend.updates)
	}
}

func TestSyncLatestUpdatesWhenInstalled(t *testing.T) {
	backend := &fakeBackend{
		installed: map[string]string{"nginx": "1.20.0"},
		latest:    map[string]string{"nginx": "1.24.0"},
	}
	state, _ := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsureLatest})

	event, err := state.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if event != EventUpdated {
		t.Errorf("event = %q, want updated", event)
	}
}

func TestSyncActsOnFirstValueOnly(t *testing.T) {
	backend := &fakeBackend{}
	state, _ := newTestState(t, backend, backend.capabilities(),
		Ensure{Kind: EnsureVersion, Version: "1.18.0"}, Ensure{Kind: EnsurePresent})

	if _, err := state.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if v := backend.installed["nginx"]; v != "1.18.0" {
		t.Errorf("installed version = %q, want the first declared value 1.18.0", v)
	}
}

func TestSyncVersionOnNonVersionableKind(t *testing.T) {
	backend := &fakeBackend{}
	caps := backend.capabilities()
	caps.Versionable = provider.SupportDisabled
	state, _ := newTestState(t, backend, caps, Ensure{Kind: EnsureVersion, Version: "1.18.0"})

	_, err := state.Sync(context.Background())
	if !provider.IsUnsupported(err) {
		t.Fatalf("err = %v, want UnsupportedOperationError", err)
	}
	if backend.installs != 0 {
		t.Errorf("installs = %d, want 0: capability check must precede any action", backend.installs)
	}
	if state.Phase() == PhaseSyncFailed {
		t.Error("unsupported operation is not a sync failure")
	}
}

func TestSyncWrapsProviderFailure(t *testing.T) {
	backend := &fakeBackend{actionErr: errors.New("dpkg was interrupted")}
	state, res := newTestState(t, backend, backend.capabilities(), Ensure{Kind: EnsurePresent})

	_, err := state.Sync(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var syncErr *SyncActionError
	if !errors.As(err, &syncErr) {
		t.Fatalf("err = %T, want *SyncActionError", err)
	}
	if syncErr.Resource != res.Ref() || syncErr.Action != "install" {
		t.Errorf("wrapped context = %s/%s", syncErr.Resource, syncErr.Action)
	}
	if !errors.Is(err, backend.actionErr) {
		t.Error("cause should be preserved for errors.Is")
	}
	if state.Phase() != PhaseSyncFailed {
		t.Errorf("phase = %s, want syncfailed", state.Phase())
	}
}
