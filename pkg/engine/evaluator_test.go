package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/floatingatoll/puppet/pkg/provider"
	"github.com/floatingatoll/puppet/pkg/resource"
	"github.com/floatingatoll/puppet/pkg/transaction"
)

// fakeSystem simulates installed packages behind provider capabilities.
type fakeSystem struct {
	installed map[string]string
	latest    map[string]string
	failOn    string
}

func (f *fakeSystem) capabilities() provider.Capabilities {
	return provider.Capabilities{
		Query: func(ctx context.Context, name string) (string, bool, error) {
			v, ok := f.installed[name]
			return v, ok, nil
		},
		Install: func(ctx context.Context, name, version string) error {
			if name == f.failOn {
				return errors.New("install exploded")
			}
			if version == "" {
				version = "1.0"
			}
			f.installed[name] = version
			return nil
		},
		Remove: func(ctx context.Context, name string) error {
			if name == f.failOn {
				return errors.New("remove exploded")
			}
			delete(f.installed, name)
			return nil
		},
		Update: func(ctx context.Context, name string) error {
			f.installed[name] = f.latest[name]
			return nil
		},
		Latest: func(ctx context.Context, name string) (string, error) {
			return f.latest[name], nil
		},
		Versionable: provider.SupportEnabled,
		HoldsLatest: provider.SupportEnabled,
	}
}

func newTestEvaluator(t *testing.T, sys *fakeSystem, cfgMod func(*Config)) *Evaluator {
	t.Helper()

	reg := provider.NewRegistry(zerolog.Nop())
	if _, err := reg.Register("apt", "", sys.capabilities()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := Config{
		Registry:  reg,
		Platforms: []string{"ubuntu", "debian"},
	}
	if cfgMod != nil {
		cfgMod(&cfg)
	}

	ev, err := NewEvaluator(cfg)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return ev
}

func pkg(title string, should ...resource.Ensure) *resource.Resource {
	return &resource.Resource{
		Type:   "package",
		Title:  title,
		Should: should,
	}
}

func TestRunAllInSync(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{"nginx": "1.24"}}
	ev := newTestEvaluator(t, sys, nil)

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("nginx", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != ReportStatusUnchanged {
		t.Errorf("report status = %s, want unchanged", report.Status)
	}
	if report.ResourceCount != 1 || report.ChangedCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", report.ResourceCount, report.ChangedCount)
	}
	if n := len(report.Statuses[0].Events); n != 0 {
		t.Errorf("in-sync resource recorded %d events, want 0", n)
	}
}

func TestRunInstallsMissingPackage(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}
	ev := newTestEvaluator(t, sys, nil)

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("vim", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != ReportStatusChanged {
		t.Fatalf("report status = %s, want changed", report.Status)
	}
	if _, ok := sys.installed["vim"]; !ok {
		t.Error("package was not installed")
	}

	snap := report.Statuses[0]
	if !snap.Changed || snap.ChangeCount != 1 {
		t.Errorf("snapshot changed=%v count=%d, want true/1", snap.Changed, snap.ChangeCount)
	}
	if len(snap.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(snap.Events))
	}
	ev0 := snap.Events[0]
	if ev0.Kind != resource.EventInstalled || ev0.Status != transaction.StatusSuccess {
		t.Errorf("event = %s/%s, want installed/success", ev0.Kind, ev0.Status)
	}
	want := "ensure: changed 'absent' to 'present'"
	if ev0.Message != want {
		t.Errorf("event message = %q, want %q", ev0.Message, want)
	}
}

func TestRunRemovesPackage(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{"telnet": "0.17"}}
	ev := newTestEvaluator(t, sys, nil)

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("telnet", resource.Ensure{Kind: resource.EnsureAbsent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := sys.installed["telnet"]; ok {
		t.Error("package was not removed")
	}
	if got := report.Statuses[0].Events[0].Kind; got != resource.EventRemoved {
		t.Errorf("event kind = %s, want removed", got)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}, failOn: "broken"}
	ev := newTestEvaluator(t, sys, nil)

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("broken", resource.Ensure{Kind: resource.EnsurePresent}),
		pkg("fine", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Status != ReportStatusFailed {
		t.Errorf("report status = %s, want failed", report.Status)
	}
	if report.FailedCount != 1 || report.ChangedCount != 1 {
		t.Errorf("failed/changed = %d/%d, want 1/1", report.FailedCount, report.ChangedCount)
	}

	snap := report.Statuses[0]
	if !snap.Failed {
		t.Error("first resource should be failed")
	}
	if snap.Events[0].Status != transaction.StatusFailure {
		t.Errorf("event status = %s, want failure", snap.Events[0].Status)
	}

	// The second resource still converged.
	if _, ok := sys.installed["fine"]; !ok {
		t.Error("pass stopped at the failed resource")
	}
}

func TestRunNoopRecordsAudit(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}
	ev := newTestEvaluator(t, sys, func(cfg *Config) {
		cfg.Noop = true
	})

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("vim", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := sys.installed["vim"]; ok {
		t.Error("noop pass must not install packages")
	}
	if report.Status != ReportStatusUnchanged {
		t.Errorf("report status = %s, want unchanged", report.Status)
	}
	if !report.Noop {
		t.Error("report should be flagged noop")
	}

	snap := report.Statuses[0]
	if snap.Changed || snap.Failed {
		t.Error("audit events must not flip changed or failed")
	}
	if len(snap.Events) != 1 || snap.Events[0].Status != transaction.StatusAudit {
		t.Fatalf("expected a single audit event, got %+v", snap.Events)
	}
	if !snap.Scheduled {
		t.Error("noop resource should be marked scheduled")
	}
}

type denyAllGate struct {
	inputs []*ActionInput
}

func (g *denyAllGate) CheckAction(ctx context.Context, input *ActionInput) (*PolicyResult, error) {
	g.inputs = append(g.inputs, input)
	return &PolicyResult{
		Allowed: false,
		Violations: []PolicyViolation{
			{Policy: "change_policy", Message: "removal of protected packages is forbidden", Severity: "error"},
		},
	}, nil
}

func TestRunPolicyDenial(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{"openssh-server": "9.6"}}
	gate := &denyAllGate{}
	ev := newTestEvaluator(t, sys, func(cfg *Config) {
		cfg.Policy = gate
	})

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("openssh-server", resource.Ensure{Kind: resource.EnsureAbsent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := sys.installed["openssh-server"]; !ok {
		t.Error("denied action must not run")
	}
	snap := report.Statuses[0]
	if !snap.Skipped {
		t.Error("denied resource should be marked skipped")
	}
	if len(snap.Events) != 1 || snap.Events[0].Status != transaction.StatusAudit {
		t.Fatalf("expected a single audit event, got %+v", snap.Events)
	}

	if len(gate.inputs) != 1 {
		t.Fatalf("gate saw %d actions, want 1", len(gate.inputs))
	}
	in := gate.inputs[0]
	if in.Action != "remove" || in.Provider != "apt" || in.Title != "openssh-server" {
		t.Errorf("unexpected policy input: %+v", in)
	}
}

type failingGate struct{}

func (failingGate) CheckAction(ctx context.Context, input *ActionInput) (*PolicyResult, error) {
	return nil, errors.New("bundle compile error")
}

func TestRunPolicyEngineErrorAllowsAction(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}
	ev := newTestEvaluator(t, sys, func(cfg *Config) {
		cfg.Policy = failingGate{}
	})

	_, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("vim", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := sys.installed["vim"]; !ok {
		t.Error("a failing policy engine should not block the action")
	}
}

func TestRunUnknownProvider(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}
	ev := newTestEvaluator(t, sys, nil)

	res := pkg("vim", resource.Ensure{Kind: resource.EnsurePresent})
	res.Provider = "pacman"

	report, err := ev.Run(context.Background(), []*resource.Resource{res})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := report.Statuses[0]
	if !snap.Failed || !snap.Skipped {
		t.Errorf("failed=%v skipped=%v, want both true", snap.Failed, snap.Skipped)
	}
}

func TestRunResolvesPlatformDefault(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}

	reg := provider.NewRegistry(zerolog.Nop())
	if _, err := reg.Register("apt", "", sys.capabilities()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// "linuxmint" has no mapping of its own here, but its ID_LIKE
	// candidate "ubuntu" does.
	ev, err := NewEvaluator(Config{
		Registry:  reg,
		Platforms: []string{"unknown-distro", "ubuntu"},
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("vim", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != ReportStatusChanged {
		t.Errorf("report status = %s, want changed", report.Status)
	}
}

type memoryStore struct {
	saved []*Report
}

func (m *memoryStore) SaveReport(ctx context.Context, report *Report) error {
	m.saved = append(m.saved, report)
	return nil
}

func (m *memoryStore) GetReport(ctx context.Context, id string) (*Report, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("report not found: %s", id)
}

func (m *memoryStore) ListReports(ctx context.Context, limit int) ([]*ReportSummary, error) {
	return nil, nil
}

func TestRunPersistsReport(t *testing.T) {
	sys := &fakeSystem{installed: map[string]string{}}
	store := &memoryStore{}
	ev := newTestEvaluator(t, sys, func(cfg *Config) {
		cfg.Store = store
	})

	report, err := ev.Run(context.Background(), []*resource.Resource{
		pkg("vim", resource.Ensure{Kind: resource.EnsurePresent}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.saved) != 1 || store.saved[0].ID != report.ID {
		t.Fatalf("report was not persisted")
	}
}

func TestReportRoundTrip(t *testing.T) {
	report := NewReport("debian", false)
	status := transaction.NewStatus(transaction.Identity{ResourceType: "package", Title: "vim"})
	if err := status.RecordEvent(transaction.NewEvent("installed", transaction.StatusSuccess, "ok")); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	report.Append(status.Snapshot())
	report.Finish()

	data, err := report.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}

	if got.ID != report.ID || got.Status != ReportStatusChanged || got.ChangedCount != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
