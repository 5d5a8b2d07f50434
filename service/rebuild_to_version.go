package service

import (
	"fmt"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
)

// RebuildToVersion implements §4.5.2: "rewind official history to version
// v". It loads the full remote event list, replays only the events at or
// below v, then atomically commits a fresh snapshot of the result plus (when
// v is strictly before the current head) a set_ignore_range erasing
// everything after v. The returned graph is the new baseline; callers
// should clear any local draft and reload from it on success.
func RebuildToVersion(store EventStore, snapshots SnapshotStore, actor string, v int) (*graph.Graph, CommitResult, error) {
	all, err := store.Load(0)
	if err != nil {
		return nil, CommitResult{}, &CloudError{Kind: KindRemoteTransient, Operation: "rebuild_to_version", Retryable: true, Message: "load events", Cause: err}
	}

	var filtered []eventlog.Event
	for _, ev := range all {
		if ev.Version != nil && *ev.Version <= v {
			filtered = append(filtered, ev)
		}
	}
	rebuilt := Rebuild(filtered)

	headPrev, err := store.HeadVersion()
	if err != nil {
		return nil, CommitResult{}, &CloudError{Kind: KindRemoteTransient, Operation: "rebuild_to_version", Retryable: true, Message: "read head version", Cause: err}
	}

	snapshotV := headPrev + 1
	snapshotEvent := eventlog.NewSnapshot(actor, rebuilt.ToData())
	snapshotEvent.Version = &snapshotV
	pending := []eventlog.Event{snapshotEvent}

	if v < headPrev {
		ignoreV := headPrev + 2
		ignoreEvent := eventlog.NewSetIgnoreRange(actor, v+1, headPrev)
		ignoreEvent.Version = &ignoreV
		pending = append(pending, ignoreEvent)
	}

	result, err := Commit(store, snapshots, "rebuild_to_version", pending, SnapshotDocument{Data: rebuilt.ToData()})
	if err != nil {
		return nil, CommitResult{}, fmt.Errorf("rebuild to version %d: %w", v, err)
	}
	return rebuilt, result, nil
}
