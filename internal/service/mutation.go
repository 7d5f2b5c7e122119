// Package service implements the client's use cases on top of the
// repositories and the local state store.
package service

import (
	"context"
	"time"

	"questline/internal/featureflags"
	"questline/internal/models"
	"questline/internal/observability"
	"questline/internal/state"
)

// Outcome is how a mutation settled.
type Outcome string

const (
	// OutcomeConfirmed means the backend accepted the mutation.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRolledBack means the backend refused it and local state was restored.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeAssumed means the remote result is unknown and the optimistic
	// state was kept.
	OutcomeAssumed Outcome = "assumed"
)

// MutationResult reports the settled state of a toggle.
type MutationResult struct {
	Outcome Outcome
	// Active is the toggled flag (liked, joined) after settling.
	Active bool
	// Count is the counter paired with the flag after settling.
	Count int
	// Err is the remote failure, if any. A nil Err with OutcomeRolledBack
	// means the backend answered with success=false.
	Err error
}

// Mutator runs optimistic mutations. Mutations on the same entity are
// serialized; different entities proceed independently.
type Mutator struct {
	locks *state.KeyedLock
	flags *featureflags.Manager
}

// NewMutator creates a mutator. flags may be nil.
func NewMutator(flags *featureflags.Manager) *Mutator {
	return &Mutator{locks: state.NewKeyedLock(), flags: flags}
}

// lock serializes work on one entity.
func (m *Mutator) lock(ctx context.Context, entity, id string) (func(), error) {
	return m.locks.Lock(ctx, entity+":"+id)
}

// keepOnIndeterminate reports whether optimistic state survives a timeout,
// 5xx or unreachable backend for userID.
func (m *Mutator) keepOnIndeterminate(userID string) bool {
	return !m.flags.Enabled(featureflags.StrictMutations, userID)
}

// settle decides what a remote answer means for optimistic state.
func (m *Mutator) settle(userID string, err error, success bool) Outcome {
	switch {
	case err == nil && success:
		return OutcomeConfirmed
	case err == nil:
		return OutcomeRolledBack
	case models.IsExplicitFailure(err):
		return OutcomeRolledBack
	case models.IsIndeterminate(err):
		if m.keepOnIndeterminate(userID) {
			return OutcomeAssumed
		}
		return OutcomeRolledBack
	case models.IsMalformed(err):
		// 2xx with an unusable body: the backend applied it.
		return OutcomeAssumed
	default:
		// Failed before anything was sent (token, encoding).
		return OutcomeRolledBack
	}
}

// toggle describes one flag/counter pair mirrored across collections.
type toggle[T state.Entity] struct {
	entity string
	mirror *state.Mirror[T]
	get    func(T) (active bool, count int)
	set    func(item T, active bool, count int) T
	on     func(ctx context.Context) (models.Ack, error)
	off    func(ctx context.Context) (models.Ack, error)
	// changed runs under the entity lock whenever the flag is applied,
	// restored or reconciled.
	changed func(item T, active bool)
}

func runToggle[T state.Entity](ctx context.Context, m *Mutator, viewer models.Viewer, id string, t toggle[T]) (MutationResult, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return MutationResult{}, models.NewValidationError("Sign in to continue")
	}
	if id == "" {
		return MutationResult{}, models.NewValidationError(t.entity + " id is required")
	}

	unlock, err := m.lock(ctx, t.entity, id)
	if err != nil {
		return MutationResult{}, err
	}
	defer unlock()

	current, found := t.mirror.Find(id)
	if !found {
		return MutationResult{}, models.NewNotFoundError(t.entity, id)
	}

	// Snapshot the toggled fields of every copy, so a rollback restores each
	// collection's own values and leaves unrelated fields (e.g. commentCount)
	// as they are by then.
	snapshot := t.mirror.Snapshot(id)
	prevActive, prevCount := t.get(current)
	target := !prevActive
	delta := 1
	if prevActive {
		delta = -1
	}

	fields := map[string]interface{}{"entity": t.entity, "id": id, "user_id": userID, "target": target}
	observability.LogAsyncOperationStart(ctx, "toggle_"+t.entity, fields)
	start := time.Now()

	t.mirror.Update(id, func(item T) T {
		active, count := t.get(item)
		if active == target {
			return item
		}
		return t.set(item, target, clampCount(count+delta))
	})
	optimistic := t.set(current, target, clampCount(prevCount+delta))
	if t.changed != nil {
		t.changed(optimistic, target)
	}

	remote := t.on
	if prevActive {
		remote = t.off
	}
	ack, remoteErr := remote(ctx)

	outcome := m.settle(userID, remoteErr, ack.Success)
	result := MutationResult{Outcome: outcome, Err: remoteErr}

	switch outcome {
	case OutcomeConfirmed:
		finalActive, finalCount := target, clampCount(prevCount+delta)
		if ack.State != nil {
			finalActive = *ack.State
		}
		if ack.Count != nil {
			finalCount = clampCount(*ack.Count)
		}
		if ack.Count != nil || finalActive != target {
			t.mirror.Update(id, func(item T) T { return t.set(item, finalActive, finalCount) })
			if t.changed != nil {
				t.changed(t.set(current, finalActive, finalCount), finalActive)
			}
		}
		result.Active, result.Count = finalActive, finalCount
	case OutcomeRolledBack:
		t.mirror.UpdateEach(id, func(collection string, item T) T {
			prev, ok := snapshot[collection]
			if !ok {
				// Fetched mid-flight; already reflects the backend.
				return item
			}
			active, count := t.get(prev)
			return t.set(item, active, count)
		})
		if t.changed != nil {
			t.changed(current, prevActive)
		}
		result.Active, result.Count = prevActive, prevCount
	case OutcomeAssumed:
		result.Active, result.Count = target, clampCount(prevCount+delta)
	}

	fields["outcome"] = string(outcome)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if remoteErr != nil {
		observability.LogAsyncOperationError(ctx, "toggle_"+t.entity, remoteErr, fields)
	} else {
		observability.LogAsyncOperationEnd(ctx, "toggle_"+t.entity, fields)
	}
	observability.RecordMutation(t.entity, string(outcome))
	return result, nil
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
