// Package service implements GraphService (C5): it composes the graph and
// event log, applies mutations by emitting events, rebuilds a graph from a
// stored event sequence, and coordinates the two-store atomic commit that
// keeps a remote snapshot and event list consistent.
package service

import (
	"time"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
)

// SnapshotDocument is the blob round-tripped by SnapshotStore: a graph
// serialization plus a saved_at timestamp and optional coordination record
// (§6).
type SnapshotDocument struct {
	Data           graph.GraphData
	SavedAt        time.Time
	Coordination   *eventlog.CoordinationRecord
	EventsAppended int
	Repair         *RepairAttempt
}

// RepairAttempt records a snapshot-only repair try, stamped into the
// snapshot payload so a later reader can see how many attempts a commit
// needed (SPEC_FULL.md supplemented feature: repair-attempt tagging).
type RepairAttempt struct {
	Attempt     int
	AttemptedAt time.Time
	Operation   string
}

// SnapshotStore is the remote single-document port (§6).
type SnapshotStore interface {
	Load() (*SnapshotDocument, error)
	Save(SnapshotDocument) error
}

// EventStore is the remote append-only, versioned event list port (§6).
// Append must be atomic within the port: it either writes every event or
// none, and always returns the count actually written.
type EventStore interface {
	HeadVersion() (int, error)
	Append(events []eventlog.Event) (int, error)
	Load(fromVersion int) ([]eventlog.Event, error)
	SearchByVersion(v, offset, limit int) ([]eventlog.Event, int, error)
	SearchByKind(kinds []eventlog.Kind, offset, limit int) ([]eventlog.Event, int, error)
	SearchByTimestamp(tsPrefix string, offset, limit int) ([]eventlog.Event, int, error)
}
