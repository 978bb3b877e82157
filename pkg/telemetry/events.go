package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted by the agent.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ReportID is the associated convergence report ID, if applicable.
	ReportID string `json:"report_id,omitempty"`

	// Resource is the associated resource reference, if applicable.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypePassStarted     = "pass.started"
	EventTypePassCompleted   = "pass.completed"
	EventTypePassFailed      = "pass.failed"
	EventTypeResourceChanged = "resource.changed"
	EventTypeResourceFailed  = "resource.failed"
	EventTypePolicyViolation = "policy.violation"
	EventTypeProviderInvoked = "provider.invoked"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishPassStarted publishes a pass started event.
func (ep *EventPublisher) PublishPassStarted(reportID string, resourceCount int, noop bool) error {
	mode := "apply"
	if noop {
		mode = "noop"
	}
	return ep.Publish(Event{
		Type:     EventTypePassStarted,
		Source:   "engine",
		ReportID: reportID,
		Message:  fmt.Sprintf("Convergence pass %s started (%s, %d resources)", reportID, mode, resourceCount),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"mode":           mode,
			"resource_count": resourceCount,
		},
	})
}

// PublishPassCompleted publishes a pass completed event.
func (ep *EventPublisher) PublishPassCompleted(reportID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:     EventTypePassCompleted,
		Source:   "engine",
		ReportID: reportID,
		Message:  fmt.Sprintf("Convergence pass %s completed with status: %s", reportID, status),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishPassFailed publishes a pass failed event.
func (ep *EventPublisher) PublishPassFailed(reportID, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypePassFailed,
		Source:   "engine",
		ReportID: reportID,
		Message:  fmt.Sprintf("Convergence pass %s failed: %s", reportID, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishResourceChanged publishes a resource change event.
func (ep *EventPublisher) PublishResourceChanged(reportID, ref, action, message string) error {
	return ep.Publish(Event{
		Type:     EventTypeResourceChanged,
		Source:   "engine",
		ReportID: reportID,
		Resource: ref,
		Message:  fmt.Sprintf("Resource %s changed: %s", ref, message),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"action": action,
		},
	})
}

// PublishResourceFailed publishes a resource failure event.
func (ep *EventPublisher) PublishResourceFailed(reportID, ref, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeResourceFailed,
		Source:   "engine",
		ReportID: reportID,
		Resource: ref,
		Message:  fmt.Sprintf("Resource %s failed: %s", ref, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(reportID, ref, policyName, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypePolicyViolation,
		Source:   "policy_engine",
		ReportID: reportID,
		Resource: ref,
		Message:  fmt.Sprintf("Policy violation on resource %s: %s - %s", ref, policyName, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByReportID creates a filter that only allows events for a specific report.
func FilterByReportID(reportID string) EventFilter {
	return func(event Event) bool {
		return event.ReportID == reportID
	}
}

// FilterByResource creates a filter that only allows events for a specific resource.
func FilterByResource(ref string) EventFilter {
	return func(event Event) bool {
		return event.Resource == ref
	}
}
