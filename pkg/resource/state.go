package resource

import (
	"context"
	"fmt"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// Phase is the position of a resource in the convergence state machine for
// the current pass.
type Phase string

const (
	// PhaseUnevaluated is the initial phase before the first retrieval.
	PhaseUnevaluated Phase = "unevaluated"

	// PhaseRetrieved means the observed value has been fetched and cached.
	PhaseRetrieved Phase = "retrieved"

	// PhaseInSync is terminal for the pass: no corrective action is needed.
	PhaseInSync Phase = "insync"

	// PhaseOutOfSync means a corrective action is pending.
	PhaseOutOfSync Phase = "outofsync"

	// PhaseSynced means the corrective action succeeded.
	PhaseSynced Phase = "synced"

	// PhaseSyncFailed means the corrective action failed; terminal for the pass.
	PhaseSyncFailed Phase = "syncfailed"
)

// Event kinds reported by Sync for a successful corrective action.
const (
	EventInstalled = "installed"
	EventRemoved   = "removed"
	EventUpdated   = "updated"
)

// State is the should/is comparison and synchronization state machine for one
// resource during one convergence pass. It is owned exclusively by that
// resource's evaluation and never shared across goroutines.
type State struct {
	res  *Resource
	kind *provider.Kind

	is        string
	retrieved bool
	latest    string
	phase     Phase
}

// NewState binds a resource declaration to a provider kind for one pass.
func NewState(res *Resource, kind *provider.Kind) *State {
	return &State{
		res:   res,
		kind:  kind,
		is:    ValueUnknown,
		phase: PhaseUnevaluated,
	}
}

// Resource returns the bound declaration.
func (s *State) Resource() *Resource { return s.res }

// Kind returns the bound provider kind.
func (s *State) Kind() *provider.Kind { return s.kind }

// Phase returns the current state-machine phase.
func (s *State) Phase() Phase { return s.phase }

// Is returns the observed value cached for this pass, or ValueUnknown before
// the first retrieval.
func (s *State) Is() string { return s.is }

// Retrieve fetches the observed value through the bound provider's query
// capability. The result is cached for the lifetime of the pass; repeated
// calls are no-ops. A provider reporting the resource entirely absent yields
// the ValueAbsent sentinel; any other observation becomes the value verbatim.
func (s *State) Retrieve(ctx context.Context) error {
	if s.retrieved {
		return nil
	}

	version, installed, err := s.kind.Query(ctx, s.res.Title)
	if err != nil {
		return fmt.Errorf("%s: query failed: %w", s.res.Ref(), err)
	}

	if !installed {
		s.is = ValueAbsent
	} else {
		s.is = version
	}
	s.retrieved = true
	s.phase = PhaseRetrieved
	return nil
}

// InSync reports whether the observed value satisfies any declared target
// value, evaluating the should list in declaration order and short-circuiting
// on the first match:
//
//  1. present        -> in sync unless absent
//  2. latest         -> in sync iff observed equals the provider's latest
//  3. absent         -> in sync iff absent
//  4. exact version  -> in sync iff observed equals that string
//
// Retrieve runs first if it has not already. The latest version fetched for
// rule 2 is kept for Sync, so an out-of-sync "latest" resource costs one
// provider query, not two.
func (s *State) InSync(ctx context.Context) (bool, error) {
	if err := s.Retrieve(ctx); err != nil {
		return false, err
	}

	for _, should := range s.res.Should {
		switch should.Kind {
		case EnsurePresent:
			if s.is != ValueAbsent {
				s.phase = PhaseInSync
				return true, nil
			}
		case EnsureLatest:
			latest, err := s.kind.LatestVersion(ctx, s.res.Title)
			if err != nil {
				return false, fmt.Errorf("%s: latest version lookup failed: %w", s.res.Ref(), err)
			}
			s.latest = latest
			if s.is == latest {
				s.phase = PhaseInSync
				return true, nil
			}
		case EnsureAbsent:
			if s.is == ValueAbsent {
				s.phase = PhaseInSync
				return true, nil
			}
		case EnsureVersion:
			if s.is == should.Version {
				s.phase = PhaseInSync
				return true, nil
			}
		default:
			return false, fmt.Errorf("%s: invalid ensure kind %q", s.res.Ref(), should.Kind)
		}
	}

	s.phase = PhaseOutOfSync
	return false, nil
}

// Target returns the primary declared intent: the first should value. Sync
// acts on this value only, even when several acceptable values are declared.
func (s *State) Target() Ensure { return s.res.Should[0] }

// Sync performs exactly one corrective action against the first declared
// target value and returns the resulting event kind. Capability checks happen
// before any provider call: an exact-version target on a non-versionable kind
// fails with UnsupportedOperationError and performs no action. Any failure
// raised by the provider action itself is wrapped into a SyncActionError with
// the cause preserved; converting that into a failure event is the driver's
// job, not this type's.
func (s *State) Sync(ctx context.Context) (string, error) {
	if err := s.Retrieve(ctx); err != nil {
		return "", err
	}

	target := s.Target()
	var (
		eventKind string
		action    string
		err       error
	)

	switch target.Kind {
	case EnsurePresent:
		action, eventKind = "install", EventInstalled
		err = s.kind.Install(ctx, s.res.Title, "")
	case EnsureAbsent:
		action, eventKind = "remove", EventRemoved
		err = s.kind.Remove(ctx, s.res.Title)
	case EnsureLatest:
		if s.is == ValueAbsent {
			action, eventKind = "install", EventInstalled
			err = s.kind.Install(ctx, s.res.Title, "")
		} else {
			action, eventKind = "update", EventUpdated
			err = s.kind.Update(ctx, s.res.Title)
		}
	case EnsureVersion:
		if !s.kind.Versionable() {
			return "", &provider.UnsupportedOperationError{
				Kind:      s.kind.Name(),
				Operation: "version-install",
			}
		}
		action, eventKind = "install", EventInstalled
		err = s.kind.Install(ctx, s.res.Title, target.Version)
	default:
		return "", fmt.Errorf("%s: invalid ensure kind %q", s.res.Ref(), target.Kind)
	}

	if err != nil {
		s.phase = PhaseSyncFailed
		return "", &SyncActionError{Resource: s.res.Ref(), Action: action, Err: err}
	}

	s.phase = PhaseSynced
	return eventKind, nil
}

// Latest returns the latest version recorded by InSync for a "latest" target,
// or "" when none was fetched this pass.
func (s *State) Latest() string { return s.latest }
