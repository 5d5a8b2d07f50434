// Package eventlog implements the append-only, versioned event sequence
// that backs every graph mutation, plus its undo/redo head.
package eventlog

import (
	"time"

	"github.com/jtomasevic/rbd/graph"
)

// Kind discriminates the eight event variants named in §3.
type Kind string

const (
	KindSnapshot             Kind = "snapshot"
	KindAddRootComponent     Kind = "add_root_component"
	KindAddComponentRelative Kind = "add_component_relative"
	KindRemoveNode           Kind = "remove_node"
	KindEditComponent        Kind = "edit_component"
	KindEditGate             Kind = "edit_gate"
	KindSetHead              Kind = "set_head"
	KindSetIgnoreRange       Kind = "set_ignore_range"
)

// CoordinationRecord is stamped into every event (and the snapshot payload)
// by the atomic commit writer (§4.5.3). Zero value means "not yet committed".
type CoordinationRecord struct {
	ID             string
	Timestamp      time.Time
	ExpectedEvents int
	HeadBefore     int
	Operation      string
}

// GateEditPayload mirrors graph.GateEditParams but keeps the eventlog
// package free of a graph.Graph dependency cycle on mutation application;
// service/rebuild.go translates between the two.
type GateEditPayload struct {
	K     *int
	Name  *string
	Label *string
}

// Event is the tagged union of the eight mutation/log-control kinds, plus
// the common header (ts, actor, version). Exactly one payload field is
// populated, selected by Kind.
type Event struct {
	Kind    Kind
	Ts      time.Time
	Actor   string
	Version *int // nil until Append (with a base version set) or resequencing assigns it

	Coordination *CoordinationRecord

	// snapshot
	SnapshotData *graph.GraphData

	// add_root_component
	NewCompID string
	DistKind  graph.DistKind
	UnitType  string

	// add_component_relative (also reuses NewCompID, DistKind, UnitType)
	TargetID string
	Relation graph.Relation
	K        *int

	// remove_node
	NodeID string

	// edit_component
	OldID string
	NewID string

	// edit_gate (reuses NodeID)
	GateParams GateEditPayload

	// set_head
	Upto int

	// set_ignore_range
	StartV int
	EndV   int
}

// NewSnapshot builds a `snapshot` event carrying a full graph serialization.
func NewSnapshot(actor string, data graph.GraphData) Event {
	return Event{Kind: KindSnapshot, Ts: time.Now().UTC(), Actor: actor, SnapshotData: &data}
}

// NewAddRootComponent builds an `add_root_component` event.
func NewAddRootComponent(actor, newCompID string, distKind graph.DistKind, unitType string) Event {
	return Event{
		Kind: KindAddRootComponent, Ts: time.Now().UTC(), Actor: actor,
		NewCompID: newCompID, DistKind: distKind, UnitType: unitType,
	}
}

// NewAddComponentRelative builds an `add_component_relative` event.
func NewAddComponentRelative(actor, targetID, newCompID string, relation graph.Relation, distKind graph.DistKind, k *int, unitType string) Event {
	return Event{
		Kind: KindAddComponentRelative, Ts: time.Now().UTC(), Actor: actor,
		TargetID: targetID, NewCompID: newCompID, Relation: relation,
		DistKind: distKind, K: k, UnitType: unitType,
	}
}

// NewRemoveNode builds a `remove_node` event.
func NewRemoveNode(actor, nodeID string) Event {
	return Event{Kind: KindRemoveNode, Ts: time.Now().UTC(), Actor: actor, NodeID: nodeID}
}

// NewEditComponent builds an `edit_component` event.
func NewEditComponent(actor, oldID, newID string, distKind graph.DistKind) Event {
	return Event{
		Kind: KindEditComponent, Ts: time.Now().UTC(), Actor: actor,
		OldID: oldID, NewID: newID, DistKind: distKind,
	}
}

// NewEditGate builds an `edit_gate` event.
func NewEditGate(actor, nodeID string, params GateEditPayload) Event {
	return Event{
		Kind: KindEditGate, Ts: time.Now().UTC(), Actor: actor,
		NodeID: nodeID, GateParams: params,
	}
}

// NewSetHead builds a `set_head` legacy local undo marker.
func NewSetHead(actor string, upto int) Event {
	return Event{Kind: KindSetHead, Ts: time.Now().UTC(), Actor: actor, Upto: upto}
}

// NewSetIgnoreRange builds a `set_ignore_range` event invalidating
// [startV, endV] inclusive.
func NewSetIgnoreRange(actor string, startV, endV int) Event {
	return Event{Kind: KindSetIgnoreRange, Ts: time.Now().UTC(), Actor: actor, StartV: startV, EndV: endV}
}
