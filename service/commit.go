package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jtomasevic/rbd/eventlog"
)

// CommitResult reports what a successful Commit actually did, including how
// many snapshot-only repair attempts it took (SPEC_FULL.md supplemented
// feature: repair-attempt tagging, since §4.5.3 names the mechanism but not
// a result shape for callers to introspect).
type CommitResult struct {
	CoordinationID string
	HeadBefore     int
	EventsAppended int
	RepairAttempts int
}

// commitClock abstracts time.Now and time.Sleep so tests can run the retry
// loops without real delays; production code uses realClock.
type commitClock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time       { return time.Now().UTC() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Commit runs the atomic two-store commit protocol of §4.5.3: it stamps a
// coordination record into every event and the snapshot, appends events,
// saves the snapshot, then validates eventual-consistency propagation with
// bounded exponential backoff, repairing the snapshot alone when only it
// drifted. On any failure after events were appended, it rolls back via a
// set_ignore_range event so a later rebuild elides the partial effect.
func Commit(events EventStore, snapshots SnapshotStore, operation string, pending []eventlog.Event, graphData SnapshotDocument) (CommitResult, error) {
	return commit(realClock{}, events, snapshots, operation, pending, graphData)
}

func commit(clock commitClock, store EventStore, snapshots SnapshotStore, operation string, pending []eventlog.Event, doc SnapshotDocument) (CommitResult, error) {
	if len(pending) == 0 {
		return CommitResult{}, fmt.Errorf("service: %s has no pending events to commit", operation)
	}

	headBefore, err := store.HeadVersion()
	if err != nil {
		return CommitResult{}, &CloudError{Kind: KindRemoteTransient, Operation: operation, Retryable: true, Message: "read head version", Cause: err}
	}

	expected := len(pending)
	coordID := fmt.Sprintf("%s-%s-%d-%s", operation, clock.Now().Format(time.RFC3339), headBefore, uuid.NewString())
	coordination := eventlog.CoordinationRecord{
		ID: coordID, Timestamp: clock.Now(), ExpectedEvents: expected, HeadBefore: headBefore, Operation: operation,
	}

	stamped := make([]eventlog.Event, len(pending))
	for i, ev := range pending {
		c := coordination
		ev.Coordination = &c
		stamped[i] = ev
	}

	doc.SavedAt = clock.Now()
	docCoord := coordination
	doc.Coordination = &docCoord
	doc.EventsAppended = expected

	appended, err := store.Append(stamped)
	if err != nil {
		return CommitResult{}, &CloudError{Kind: KindRemoteTransient, Operation: operation, Retryable: true, Message: "append events", Cause: err}
	}
	if appended != expected {
		return CommitResult{}, &CloudError{Operation: operation, Retryable: false, Message: fmt.Sprintf("partial event append (%d/%d)", appended, expected), Cause: ErrPartialAppend}
	}
	eventsCommitted := true

	if err := snapshots.Save(doc); err != nil {
		return CommitResult{}, rollbackAfter(clock, store, operation, headBefore, expected, eventsCommitted,
			&CloudError{Kind: KindRemoteTransient, Operation: operation, Retryable: true, Message: "save snapshot", Cause: err})
	}

	clock.Sleep(500 * time.Millisecond)

	repairAttempts := 0
	if err := validateConsistencyWithRetry(clock, store, snapshots, coordination); err != nil {
		attempts, repairErr := repairWithRetry(clock, store, snapshots, operation, coordination, doc)
		repairAttempts = attempts
		if repairErr != nil {
			return CommitResult{}, rollbackAfter(clock, store, operation, headBefore, expected, eventsCommitted,
				&CloudError{Kind: KindCoordinationMismatch, Operation: operation, Retryable: false, Message: "consistency validation failed and repair did not recover", Cause: repairErr})
		}
		if err := validateConsistencyWithRetry(clock, store, snapshots, coordination); err != nil {
			return CommitResult{}, rollbackAfter(clock, store, operation, headBefore, expected, eventsCommitted,
				&CloudError{Kind: KindCoordinationMismatch, Operation: operation, Retryable: false, Message: "consistency validation failed after repair", Cause: err})
		}
	}

	return CommitResult{CoordinationID: coordID, HeadBefore: headBefore, EventsAppended: expected, RepairAttempts: repairAttempts}, nil
}

func validateConsistencyWithRetry(clock commitClock, store EventStore, snapshots SnapshotStore, coordination eventlog.CoordinationRecord) error {
	const maxAttempts = 4
	const baseDelay = 2200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := validateConsistency(store, snapshots, coordination); err != nil {
			lastErr = err
			if attempt == maxAttempts {
				return lastErr
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			clock.Sleep(delay)
			continue
		}
		return nil
	}
	return lastErr
}

func validateConsistency(store EventStore, snapshots SnapshotStore, coordination eventlog.CoordinationRecord) error {
	snap, err := snapshots.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil || snap.Coordination == nil {
		return fmt.Errorf("%w: snapshot missing after commit", ErrCoordinationMismatch)
	}
	if snap.Coordination.ID != coordination.ID {
		return fmt.Errorf("%w: snapshot coordination id", ErrCoordinationMismatch)
	}
	if snap.Coordination.ExpectedEvents != coordination.ExpectedEvents {
		return fmt.Errorf("%w: snapshot expected_events", ErrCoordinationMismatch)
	}

	if coordination.ExpectedEvents <= 0 {
		return nil
	}

	head, err := store.HeadVersion()
	if err != nil {
		return fmt.Errorf("read head version: %w", err)
	}
	fromVersion := head - coordination.ExpectedEvents
	if fromVersion < 1 {
		fromVersion = 1
	}
	events, err := store.Load(fromVersion)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) < coordination.ExpectedEvents {
		return fmt.Errorf("%w: events missing after commit", ErrCoordinationMismatch)
	}

	tail := events[len(events)-coordination.ExpectedEvents:]
	for _, ev := range tail {
		if ev.Coordination == nil || ev.Coordination.ID != coordination.ID {
			return fmt.Errorf("%w: events coordination id", ErrCoordinationMismatch)
		}
	}
	return nil
}

// repairWithRetry implements §4.5.3 step 6: snapshot-only repair, bounded to
// 3 attempts with exponential backoff. It first confirms events are
// actually present under the expected coordination id; if not, repair is
// illegal and fails unrecoverably.
func repairWithRetry(clock commitClock, store EventStore, snapshots SnapshotStore, operation string, coordination eventlog.CoordinationRecord, doc SnapshotDocument) (int, error) {
	eventsWritten, err := eventsPresentFor(store, coordination)
	if err != nil {
		return 0, err
	}
	if !eventsWritten {
		return 0, ErrRepairUnrecoverable
	}

	const maxAttempts = 3
	const baseDelay = 1200 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delay := baseDelay * time.Duration(1<<uint(attempt-1))

		repaired := doc
		repaired.Repair = &RepairAttempt{Attempt: attempt, AttemptedAt: clock.Now(), Operation: operation}
		if err := snapshots.Save(repaired); err != nil {
			clock.Sleep(delay)
			continue
		}
		clock.Sleep(delay)

		if verr := validateConsistency(store, snapshots, coordination); verr == nil {
			return attempt, nil
		}
	}
	return maxAttempts, fmt.Errorf("service: %s failed to repair snapshot after %d attempts", operation, maxAttempts)
}

func eventsPresentFor(store EventStore, coordination eventlog.CoordinationRecord) (bool, error) {
	if coordination.ExpectedEvents <= 0 {
		return true, nil
	}
	events, err := store.Load(0)
	if err != nil {
		return false, fmt.Errorf("load events: %w", err)
	}
	if len(events) < coordination.ExpectedEvents {
		return false, nil
	}
	tail := events[len(events)-coordination.ExpectedEvents:]
	for _, ev := range tail {
		if ev.Coordination == nil || ev.Coordination.ID != coordination.ID {
			return false, nil
		}
	}
	return true, nil
}

// rollbackAfter appends a set_ignore_range event erasing
// [headBefore+1, headBefore+expected] when events were actually written,
// per §4.5.3's rollback clause. If the rollback append itself fails, the
// original failure and the rollback failure are composed into a Rollback
// error.
func rollbackAfter(clock commitClock, store EventStore, operation string, headBefore, expected int, eventsCommitted bool, original *CloudError) error {
	if !eventsCommitted || expected <= 0 {
		return original
	}

	startV := headBefore + 1
	endV := headBefore + expected
	if endV < startV {
		return original
	}

	rollbackEvent := eventlog.NewSetIgnoreRange(operation+"-rollback", startV, endV)
	v := endV + 1
	rollbackEvent.Version = &v

	if _, err := store.Append([]eventlog.Event{rollbackEvent}); err != nil {
		return &CloudError{
			Kind: KindRollback, Operation: operation, Retryable: true,
			Message: "rollback append failed after commit error", Cause: original, RollbackCause: err,
		}
	}
	return original
}
