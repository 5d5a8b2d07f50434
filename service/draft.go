package service

import (
	"time"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
)

// DraftMeta is the metadata stored alongside a draft's snapshot and event
// list (§3).
type DraftMeta struct {
	BaseVersion int
	Name        string
	SavedAt     time.Time
}

// Draft is a locally persistable (snapshot, active_events, meta) triple a
// client can save or load to resume work (§3/§4.5.5). This core only
// supports a single active draft per service; multi-draft CRUD is out of
// scope (see DESIGN.md).
type Draft struct {
	Snapshot     graph.GraphData
	ActiveEvents []eventlog.Event
	Meta         DraftMeta
}

// CaptureState implements §4.5.5's collect_current_state: it reads the
// current cloud head as base_version, resequences the service's active
// local events against it, and returns the resulting draft.
func CaptureState(s *GraphService, store EventStore) (Draft, error) {
	head, err := store.HeadVersion()
	if err != nil {
		return Draft{}, &CloudError{Kind: KindRemoteTransient, Operation: "capture_state", Retryable: true, Message: "read head version", Cause: err}
	}

	var active []eventlog.Event
	if s.Log != nil {
		s.Log.ResequenceVersions(head)
		active = s.Log.Active()
	}

	return Draft{
		Snapshot:     s.Graph.ToData(),
		ActiveEvents: active,
		Meta:         DraftMeta{BaseVersion: head, SavedAt: time.Now().UTC()},
	}, nil
}

// IsStale reports whether draft.Meta.BaseVersion no longer matches the
// current cloud head.
func IsStale(draft Draft, store EventStore) (bool, error) {
	head, err := store.HeadVersion()
	if err != nil {
		return false, &CloudError{Kind: KindRemoteTransient, Operation: "check_draft_staleness", Retryable: true, Message: "read head version", Cause: err}
	}
	return draft.Meta.BaseVersion != head, nil
}

// ApplyDraft implements §4.5.5's apply_loaded_draft: it restores the
// service's graph from the draft's snapshot, installs its events into the
// log (resequenced from meta.base_version), and rebases the service's cloud
// baseline. A stale draft (base_version mismatch against the current cloud
// head) is rejected with ErrDraftStale rather than silently applied — §4.5.5
// says loading a stale draft "discards it"; the caller decides what to load
// instead.
func ApplyDraft(s *GraphService, store EventStore, draft Draft) error {
	stale, err := IsStale(draft, store)
	if err != nil {
		return err
	}
	if stale {
		return ErrDraftStale
	}

	g := graph.NewGraph(true)
	if err := g.FromData(draft.Snapshot); err != nil {
		return err
	}
	s.Graph = g

	if s.Log != nil {
		s.Log.Replace(draft.ActiveEvents)
		s.Log.ResequenceVersions(draft.Meta.BaseVersion)
	}

	baseline := draft.Snapshot
	s.Baseline = &baseline
	return nil
}
