// Package graph implements the reliability-block-diagram tree model: a
// rooted tree whose leaves are components (a failure-time distribution) and
// whose internal nodes are gates combining their children by series (AND),
// parallel (OR), or k-out-of-n (KOON).
package graph

import "github.com/google/uuid"

// Kind discriminates the two node variants. Go has no class hierarchy for
// this; a tagged union plus a kind switch in the evaluator stands in for the
// source's ComponentNode/GateNode/AndGateNode/OrGateNode/KoonGateNode chain.
type Kind uint8

const (
	// KindComponent marks a leaf node with a failure-time distribution.
	KindComponent Kind = iota
	// KindGate marks an internal node combining its children.
	KindGate
)

// DistKind names the failure-time distribution family of a component.
type DistKind string

const (
	DistExponential DistKind = "exponential"
	DistWeibull     DistKind = "weibull"
)

// GateSubtype names the combination rule of a gate.
type GateSubtype string

const (
	GateAND  GateSubtype = "AND"
	GateOR   GateSubtype = "OR"
	GateKOON GateSubtype = "KOON"
)

// Component holds the fields specific to a leaf node.
type Component struct {
	DistKind DistKind
	UnitType string

	// Reliability is the last-evaluated R(t); nil until Evaluate runs.
	Reliability *float64
	// Conflict is true when the last evaluation found too few failure
	// records to estimate parameters and fell back to FALLBACK_R.
	Conflict bool
}

// Gate holds the fields specific to an internal node.
type Gate struct {
	Subtype GateSubtype
	// K is the KOON threshold. Required iff Subtype == GateKOON, and must
	// satisfy 1 <= K <= child_count once the gate has children.
	K int

	Name  string
	Label string
	GUID  string

	Reliability *float64
}

// Node is the tagged union of Component and Gate, sharing an id. Exactly one
// of Component/Gate is non-nil, selected by Kind.
type Node struct {
	ID   string
	Kind Kind

	Component *Component
	Gate      *Gate
}

// IsComponent reports whether n is a leaf node.
func (n *Node) IsComponent() bool { return n.Kind == KindComponent }

// IsGate reports whether n is an internal node.
func (n *Node) IsGate() bool { return n.Kind == KindGate }

// Reliability returns the node's last-evaluated reliability, or nil if it
// has not been evaluated since the last reset.
func (n *Node) Reliability() *float64 {
	if n.IsComponent() {
		return n.Component.Reliability
	}
	return n.Gate.Reliability
}

// SetReliability records r as the node's last-evaluated reliability. Called
// by the evaluator after computing R(id); not meant for general mutation.
func (n *Node) SetReliability(r float64) {
	if n.IsComponent() {
		n.Component.Reliability = &r
		return
	}
	n.Gate.Reliability = &r
}

// resetEvaluation clears cached reliability (and, for components, the
// conflict flag) ahead of a fresh evaluation pass.
func (n *Node) resetEvaluation() {
	if n.IsComponent() {
		n.Component.Reliability = nil
		n.Component.Conflict = false
		return
	}
	n.Gate.Reliability = nil
}

// NewComponentNode builds a leaf node with the given distribution.
func NewComponentNode(id string, distKind DistKind, unitType string) *Node {
	return &Node{
		ID:   id,
		Kind: KindComponent,
		Component: &Component{
			DistKind: distKind,
			UnitType: unitType,
		},
	}
}

// NewGateNode builds an internal node of the given subtype. name/label
// default to id when empty, matching the original's GateNode.__post_init__.
// The GUID is a name-based UUID derived from id, so replaying the same
// events always yields the same GUIDs.
func NewGateNode(id string, subtype GateSubtype, k int, name, label string) *Node {
	if name == "" {
		name = id
	}
	if label == "" {
		label = id
	}
	return &Node{
		ID:   id,
		Kind: KindGate,
		Gate: &Gate{
			Subtype: subtype,
			K:       k,
			Name:    name,
			Label:   label,
			GUID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(),
		},
	}
}
