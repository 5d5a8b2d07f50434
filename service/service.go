package service

import (
	"time"

	"github.com/jtomasevic/rbd/evaluator"
	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
)

// GraphService wraps a Graph and an optional local EventLog, applying every
// mutation to the graph and then, when a log is attached, appending the
// corresponding event (§4.5). It owns no remote ports directly: commits and
// rebuild-to-version are driven by the functions in commit.go and
// rebuild_to_version.go, which take ports as arguments.
type GraphService struct {
	Graph *graph.Graph
	Log   *eventlog.EventLog
	Actor string

	// Baseline is the last-known-good cloud snapshot, updated only after a
	// successful commit or load (§4.5.4). Undo/Redo replay from it plus the
	// active local events rather than from an empty graph, so a local undo
	// can never see further back than the remote baseline.
	Baseline *graph.GraphData
}

// New returns a GraphService over a fresh auto-normalizing graph and a
// fresh local event log.
func New(actor string) *GraphService {
	return &GraphService{
		Graph: graph.NewGraph(true),
		Log:   eventlog.NewEventLog(),
		Actor: actor,
	}
}

// replaySequence builds [synthetic_snapshot(Baseline)] ++ active, per
// §4.5.4. With no baseline set, it replays active alone.
func (s *GraphService) replaySequence(active []eventlog.Event) []eventlog.Event {
	if s.Baseline == nil {
		return active
	}
	seq := make([]eventlog.Event, 0, len(active)+1)
	seq = append(seq, eventlog.NewSnapshot(s.Actor, *s.Baseline))
	seq = append(seq, active...)
	return seq
}

func (s *GraphService) record(ev eventlog.Event) {
	if s.Log != nil {
		s.Log.Append(ev)
	}
}

// AddRootComponent installs the first node of an empty graph.
func (s *GraphService) AddRootComponent(newID string, distKind graph.DistKind, unitType string) error {
	if err := s.Graph.AddNode(graph.NewComponentNode(newID, distKind, unitType)); err != nil {
		return err
	}
	s.record(eventlog.NewAddRootComponent(s.Actor, newID, distKind, unitType))
	return nil
}

// AddSeries wires newID in series (AND) relative to targetID.
func (s *GraphService) AddSeries(targetID, newID string, distKind graph.DistKind, unitType string) error {
	return s.addRelative(targetID, newID, graph.RelationSeries, distKind, nil, unitType)
}

// AddParallel wires newID in parallel (OR) relative to targetID.
func (s *GraphService) AddParallel(targetID, newID string, distKind graph.DistKind, unitType string) error {
	return s.addRelative(targetID, newID, graph.RelationParallel, distKind, nil, unitType)
}

// AddKoon wires newID under a k-out-of-n gate relative to targetID. k must
// be >= 1.
func (s *GraphService) AddKoon(targetID, newID string, distKind graph.DistKind, k int, unitType string) error {
	if k < 1 {
		return ErrKRequiredForKoon
	}
	return s.addRelative(targetID, newID, graph.RelationKoon, distKind, &k, unitType)
}

func (s *GraphService) addRelative(targetID, newID string, relation graph.Relation, distKind graph.DistKind, k *int, unitType string) error {
	if err := s.Graph.AddComponentRelative(targetID, newID, relation, distKind, k, unitType); err != nil {
		return err
	}
	s.record(eventlog.NewAddComponentRelative(s.Actor, targetID, newID, relation, distKind, k, unitType))
	return nil
}

// RemoveNode removes a node from the graph.
func (s *GraphService) RemoveNode(nodeID string) error {
	if err := s.Graph.RemoveNode(nodeID); err != nil {
		return err
	}
	s.record(eventlog.NewRemoveNode(s.Actor, nodeID))
	return nil
}

// EditComponent updates a component's distribution and optionally renames it.
func (s *GraphService) EditComponent(oldID, newID string, distKind graph.DistKind) error {
	if err := s.Graph.EditComponent(oldID, newID, distKind); err != nil {
		return err
	}
	s.record(eventlog.NewEditComponent(s.Actor, oldID, newID, distKind))
	return nil
}

// EditGate updates a gate's k/name/label.
func (s *GraphService) EditGate(nodeID string, params graph.GateEditParams) error {
	if err := s.Graph.EditGate(nodeID, params); err != nil {
		return err
	}
	s.record(eventlog.NewEditGate(s.Actor, nodeID, eventlog.GateEditPayload{
		K: params.K, Name: params.Name, Label: params.Label,
	}))
	return nil
}

// Snapshot appends a `snapshot` event carrying the current graph state. It
// does nothing when no log is attached.
func (s *GraphService) Snapshot() {
	s.record(eventlog.NewSnapshot(s.Actor, s.Graph.ToData()))
}

// SetHead appends a legacy local undo marker event.
func (s *GraphService) SetHead(upto int) {
	s.record(eventlog.NewSetHead(s.Actor, upto))
}

// Undo/Redo move the log head and replay the graph from the synthetic
// baseline plus active events, per §4.5.4.
func (s *GraphService) Undo() bool {
	if s.Log == nil || !s.Log.Undo() {
		return false
	}
	s.Graph = Rebuild(s.replaySequence(s.Log.Active()))
	return true
}

func (s *GraphService) Redo() bool {
	if s.Log == nil || !s.Log.Redo() {
		return false
	}
	s.Graph = Rebuild(s.replaySequence(s.Log.Active()))
	return true
}

// Evaluate computes and returns the root reliability, per §4.2.
func (s *GraphService) Evaluate(est evaluator.Estimator, asOf time.Time) float64 {
	return evaluator.Evaluate(s.Graph, est, asOf)
}

// ToExpression renders the current graph algebraically.
func (s *GraphService) ToExpression() string {
	return s.Graph.ToExpression()
}
