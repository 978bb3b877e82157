package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "jaeger"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported trace exporter")
	}

	cfg = DefaultConfig()
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sampling rate above 1")
	}
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("production config should be valid: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("production logging format = %q, want json", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("production config should enable metrics")
	}
}

func TestEventPublisherSyncDelivery(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)
	ep.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		done <- struct{}{}
	}, nil)

	if err := ep.PublishResourceChanged("r1", "Package[nginx]", "installed", "ensure changed"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	ev := got[0]
	if ev.Type != EventTypeResourceChanged {
		t.Errorf("event type = %q, want %q", ev.Type, EventTypeResourceChanged)
	}
	if ev.Resource != "Package[nginx]" {
		t.Errorf("event resource = %q, want Package[nginx]", ev.Resource)
	}
	if ev.ID == "" {
		t.Error("event ID should be assigned on publish")
	}
}

func TestEventPublisherFilter(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 10})
	if err != nil {
		t.Fatalf("NewEventPublisher: %v", err)
	}

	delivered := make(chan Event, 2)
	ep.Subscribe(func(ev Event) {
		delivered <- ev
	}, FilterByLevel(EventLevelError))

	if err := ep.PublishPassStarted("r1", 3, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := ep.PublishResourceFailed("r1", "Package[vim]", "boom"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-delivered:
		if ev.Type != EventTypeResourceFailed {
			t.Errorf("delivered type = %q, want %q", ev.Type, EventTypeResourceFailed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error-level event was not delivered")
	}
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// None of these should panic on a disabled collector.
	m.RecordPassStarted("apply")
	m.RecordPassCompleted("changed", time.Second)
	m.RecordResourceEvaluation("package", "insync", time.Millisecond)
	m.RecordProviderCall("apt", "install", time.Millisecond)
	m.RecordProviderError("apt", "install")
	m.RecordSyncAction("package", "installed")
	m.RecordEvent("success")
}

func TestMetricsRecording(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:   true,
		Namespace: "puppet",
	})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordPassStarted("noop")
	m.RecordResourceEvaluation("package", "changed", 10*time.Millisecond)
	m.RecordProviderCall("dnf", "query", 5*time.Millisecond)
	m.RecordSyncAction("package", "removed")
	m.RecordEvent("audit")
	m.RecordPassCompleted("changed", 100*time.Millisecond)

	if m.Handler() == nil {
		t.Fatal("expected a metrics handler")
	}
}
