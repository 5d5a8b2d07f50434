package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for local (never-retried) failures. Graph- and
// EventLog-level errors already carry their own sentinels (graph.ErrXxx);
// these cover failures specific to the service layer.
var (
	// ErrKRequiredForKoon indicates AddKoon called with k < 1.
	ErrKRequiredForKoon = errors.New("service: k must be >= 1 for a koon gate")

	// ErrPartialAppend indicates EventStore.Append wrote fewer events than
	// expected; the commit aborts before saving the snapshot.
	ErrPartialAppend = errors.New("service: partial event append")

	// ErrCoordinationMismatch indicates post-commit validation found a
	// snapshot or event tail whose coordination id does not match.
	ErrCoordinationMismatch = errors.New("service: coordination mismatch")

	// ErrRepairUnrecoverable indicates repair was attempted but the
	// underlying events were never actually written, so there is nothing to
	// repair toward.
	ErrRepairUnrecoverable = errors.New("service: events missing, cannot repair snapshot")

	// ErrDraftStale indicates a draft's base_version no longer matches the
	// current cloud head.
	ErrDraftStale = errors.New("service: draft is stale against current cloud head")
)

// CloudErrorKind names the taxonomy of §7 for errors that cross a remote
// port boundary.
type CloudErrorKind string

const (
	KindRemoteTransient      CloudErrorKind = "RemoteTransient"
	KindRemoteConflict       CloudErrorKind = "RemoteConflict"
	KindCoordinationMismatch CloudErrorKind = "CoordinationMismatch"
	KindRollback             CloudErrorKind = "Rollback"
)

// CloudError is the structured error surfaced for any commit-path failure,
// per §7: `{operation, retryable, message, details, http_status?}`.
type CloudError struct {
	Kind       CloudErrorKind
	Operation  string
	Retryable  bool
	Message    string
	HTTPStatus int
	Cause      error
	// RollbackCause is set for a Rollback-kind error: the original commit
	// failure plus the rollback append's own failure, per §7's composite
	// failure requirement.
	RollbackCause error
}

func (e *CloudError) Error() string {
	if e.RollbackCause != nil {
		return fmt.Sprintf("service: %s: %s (rollback also failed: %v)", e.Operation, e.Message, e.RollbackCause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("service: %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("service: %s: %s", e.Operation, e.Message)
}

func (e *CloudError) Unwrap() error { return e.Cause }
