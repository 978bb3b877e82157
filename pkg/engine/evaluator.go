package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/floatingatoll/puppet/pkg/provider"
	"github.com/floatingatoll/puppet/pkg/resource"
	"github.com/floatingatoll/puppet/pkg/telemetry"
	"github.com/floatingatoll/puppet/pkg/transaction"
)

// Config contains the evaluator configuration.
type Config struct {
	// Registry is the provider kind registry. Required.
	Registry *provider.Registry

	// Platforms are the platform identifier candidates, most specific
	// first, used to resolve the default provider kind for resources
	// that do not name one.
	Platforms []string

	// Policy gates corrective actions before they run. Optional.
	Policy PolicyGate

	// Store persists completed reports. Optional.
	Store ReportStore

	// Telemetry carries the logger, metrics, tracer and event publisher.
	// Optional; a nil value disables instrumentation.
	Telemetry *telemetry.Telemetry

	// Noop records differences as audit events without applying changes.
	Noop bool
}

// Evaluator runs convergence passes over declared resources.
type Evaluator struct {
	registry  *provider.Registry
	platforms []string
	policy    PolicyGate
	store     ReportStore
	tel       *telemetry.Telemetry
	logger    *telemetry.Logger
	noop      bool
}

// NewEvaluator creates an evaluator from the given configuration.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if len(cfg.Platforms) == 0 {
		return nil, fmt.Errorf("at least one platform identifier is required")
	}

	logger := &telemetry.Logger{}
	if cfg.Telemetry != nil {
		logger = cfg.Telemetry.Logger.NewComponentLogger("engine")
	}

	return &Evaluator{
		registry:  cfg.Registry,
		platforms: cfg.Platforms,
		policy:    cfg.Policy,
		store:     cfg.Store,
		tel:       cfg.Telemetry,
		logger:    logger,
		noop:      cfg.Noop,
	}, nil
}

// Run evaluates every resource once and returns the report of the pass.
// Individual resource failures are recorded in the report and do not stop
// the pass; only context cancellation or a report persistence failure is
// returned as an error.
func (e *Evaluator) Run(ctx context.Context, resources []*resource.Resource) (*Report, error) {
	report := NewReport(e.platforms[0], e.noop)
	logger := e.logger.WithReportID(report.ID)

	mode := "apply"
	if e.noop {
		mode = "noop"
	}
	logger.Infof("starting convergence pass (%s, %d resources)", mode, len(resources))

	if e.tel != nil {
		e.tel.Metrics.RecordPassStarted(mode)
		_ = e.tel.Events.PublishPassStarted(report.ID, len(resources), e.noop)

		passCtx, passSpan := e.tel.Tracer.StartPassSpan(ctx, report.ID, e.noop)
		defer passSpan.End()
		ctx = passCtx
	}

	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status := e.evaluate(ctx, res, report.ID)
		report.Append(status.Snapshot())
	}

	report.Finish()
	logger.Infof("pass finished: %d resources, %d changed, %d failed, %d skipped",
		report.ResourceCount, report.ChangedCount, report.FailedCount, report.SkippedCount)

	if e.tel != nil {
		e.tel.Metrics.RecordPassCompleted(string(report.Status), report.Duration())
		_ = e.tel.Events.PublishPassCompleted(report.ID, string(report.Status), report.Duration())
	}

	if e.store != nil {
		if err := e.store.SaveReport(ctx, report); err != nil {
			return report, fmt.Errorf("failed to save report: %w", err)
		}
	}

	return report, nil
}

// evaluate runs the full state machine for a single resource and returns
// its transaction status.
func (e *Evaluator) evaluate(ctx context.Context, res *resource.Resource, reportID string) *transaction.Status {
	status := transaction.NewStatus(transaction.Identity{
		ResourceType:    res.Type,
		Title:           res.Title,
		File:            res.File,
		Line:            res.Line,
		ContainmentPath: res.ContainmentPath,
		Tags:            res.Tags,
	})

	timer := telemetry.NewTimer()
	logger := e.logger.WithReportID(reportID).WithResource(res.Ref())
	result := "insync"

	defer func() {
		status.SetEvaluationTime(timer.Duration())
		if e.tel != nil {
			e.tel.Metrics.RecordResourceEvaluation(res.Type, result, timer.Duration())
			for _, ev := range status.Events() {
				e.tel.Metrics.RecordEvent(string(ev.Status))
			}
		}
	}()

	if e.tel != nil {
		resCtx, span := e.tel.Tracer.StartResourceSpan(ctx, res.Ref(), res.Type)
		defer span.End()
		ctx = resCtx
	}

	if err := res.Validate(); err != nil {
		logger.WithError(err).Error("invalid resource declaration")
		e.recordFailure(status, reportID, res.Ref(), "validate", err)
		result = "failed"
		return status
	}

	kind, err := e.bindKind(res)
	if err != nil {
		logger.WithError(err).Error("no provider kind for resource")
		e.recordFailure(status, reportID, res.Ref(), "provider", err)
		status.MarkSkipped()
		result = "failed"
		return status
	}
	logger = logger.WithProvider(kind.Name())

	state := resource.NewState(res, kind)
	insync, err := state.InSync(ctx)
	if err != nil {
		logger.WithError(err).Error("state retrieval failed")
		e.recordFailure(status, reportID, res.Ref(), "query", err)
		result = "failed"
		return status
	}

	if insync {
		logger.Debugf("in sync (is %s)", state.Is())
		return status
	}

	target := state.Target()
	logger.Infof("out of sync: is %s, want %s", state.Is(), target)

	if e.noop {
		msg := fmt.Sprintf("current_value '%s', should be '%s' (noop)", state.Is(), target)
		_ = status.RecordEvent(transaction.NewEvent("audit", transaction.StatusAudit, msg))
		status.MarkScheduled()
		result = "skipped"
		return status
	}

	if e.policy != nil {
		allowed, denial := e.checkPolicy(ctx, res, state, kind, logger)
		if !allowed {
			msg := fmt.Sprintf("change blocked by policy: %s", denial)
			_ = status.RecordEvent(transaction.NewEvent("audit", transaction.StatusAudit, msg))
			status.MarkSkipped()
			if e.tel != nil {
				_ = e.tel.Events.PublishPolicyViolation(reportID, res.Ref(), "change_policy", denial)
			}
			result = "skipped"
			return status
		}
	}

	eventKind, err := state.Sync(ctx)
	if err != nil {
		logger.WithError(err).Error("corrective action failed")
		action := "sync"
		var saErr *resource.SyncActionError
		if errors.As(err, &saErr) {
			action = saErr.Action
		}
		e.recordFailure(status, reportID, res.Ref(), action, err)
		result = "failed"
		return status
	}

	msg := fmt.Sprintf("ensure: changed '%s' to '%s'", state.Is(), target)
	_ = status.RecordEvent(transaction.NewEvent(eventKind, transaction.StatusSuccess, msg))
	logger.Infof("applied: %s", msg)

	if e.tel != nil {
		e.tel.Metrics.RecordSyncAction(res.Type, eventKind)
		_ = e.tel.Events.PublishResourceChanged(reportID, res.Ref(), eventKind, msg)
	}
	result = "changed"
	return status
}

// bindKind resolves the provider kind for a resource, either the one it
// names or the platform default.
func (e *Evaluator) bindKind(res *resource.Resource) (*provider.Kind, error) {
	if res.Provider != "" {
		return e.registry.Lookup(res.Provider)
	}

	var lastErr error
	for _, id := range e.platforms {
		name, err := e.registry.ResolveDefault(id)
		if err != nil {
			lastErr = err
			continue
		}
		return e.registry.Lookup(name)
	}
	if lastErr == nil {
		lastErr = &provider.NoDefaultError{Platform: e.platforms[0]}
	}
	return nil, lastErr
}

// checkPolicy evaluates the planned action against the policy gate. An
// evaluation failure is logged and treated as allowed so that a broken
// policy bundle does not silently freeze every pass.
func (e *Evaluator) checkPolicy(ctx context.Context, res *resource.Resource, state *resource.State, kind *provider.Kind, logger *telemetry.Logger) (bool, string) {
	input := &ActionInput{
		ResourceType: res.Type,
		Title:        res.Title,
		Tags:         res.Tags,
		Action:       plannedAction(state),
		Observed:     state.Is(),
		Desired:      state.Target().String(),
		Provider:     kind.Name(),
	}

	result, err := e.policy.CheckAction(ctx, input)
	if err != nil {
		logger.WithError(err).Warn("policy evaluation failed, allowing action")
		return true, ""
	}
	if result.Allowed {
		return true, ""
	}

	if len(result.Violations) > 0 {
		return false, result.Violations[0].Message
	}
	return false, "denied"
}

// plannedAction names the corrective action Sync would take, for policy
// input and logging.
func plannedAction(state *resource.State) string {
	target := state.Target()
	switch target.Kind {
	case resource.EnsureAbsent:
		return "remove"
	case resource.EnsureLatest:
		if state.Is() != resource.ValueAbsent {
			return "update"
		}
		return "install"
	default:
		return "install"
	}
}

// recordFailure appends a failure event to the status and publishes the
// resource failure.
func (e *Evaluator) recordFailure(status *transaction.Status, reportID, ref, action string, err error) {
	_ = status.RecordEvent(transaction.NewEvent(action, transaction.StatusFailure, err.Error()))
	if e.tel != nil {
		_ = e.tel.Events.PublishResourceFailed(reportID, ref, err.Error())
	}
}
