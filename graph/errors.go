package graph

import "errors"

// Sentinel errors for Graph operations. Callers branch on these with
// errors.Is; messages are never matched by string (katalvlaran-lvlath/core
// and /builder convention).
var (
	// ErrDuplicateID indicates a node id that already exists in the graph.
	ErrDuplicateID = errors.New("graph: duplicate node id")

	// ErrUnknownNode indicates a reference to a node id not present in the graph.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrAlreadyHasParent indicates add_edge targeting a child that already
	// has a parent.
	ErrAlreadyHasParent = errors.New("graph: node already has a parent")

	// ErrAmbiguousRemoval indicates remove_node on a gate with more than one
	// child: there is no single child to adopt its place.
	ErrAmbiguousRemoval = errors.New("graph: cannot remove a gate with more than one child")

	// ErrInvalidK indicates a KOON k outside [1, child_count] when the gate
	// already has children.
	ErrInvalidK = errors.New("graph: k out of range")

	// ErrWrongNodeKind indicates an operation applied to the wrong node
	// variant (e.g. edit_component on a gate).
	ErrWrongNodeKind = errors.New("graph: wrong node kind for operation")

	// ErrInvalidRelation indicates an add_component_relative relation outside
	// {series, parallel, koon}.
	ErrInvalidRelation = errors.New("graph: invalid relation")

	// ErrKRequired indicates a koon relation/insertion missing the required k.
	ErrKRequired = errors.New("graph: k is required for koon relation")
)
