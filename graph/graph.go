package graph

import "fmt"

// Relation names the structural relationship requested by
// AddComponentRelative: series maps to an AND gate, parallel to OR, koon to
// KOON.
type Relation string

const (
	RelationSeries   Relation = "series"
	RelationParallel Relation = "parallel"
	RelationKoon     Relation = "koon"
)

func (r Relation) gateType() (GateSubtype, error) {
	switch r {
	case RelationSeries:
		return GateAND, nil
	case RelationParallel:
		return GateOR, nil
	case RelationKoon:
		return GateKOON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRelation, r)
	}
}

// Graph is a rooted, ordered tree of Nodes. Structural mutations are
// performed through two id-keyed maps (children, parent) rather than
// pointer-linked nodes, so rebuild and serialization never have to break
// cycles (see DESIGN.md, §9 of the specification).
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string
	parent   map[string]*string
	root     *string

	reliabilityTotal *float64

	// AutoNormalize, when true, calls Normalize after every structural
	// mutation (AddComponentRelative, RemoveNode, EditGate, EditComponent).
	AutoNormalize bool
}

// NewGraph returns an empty graph.
func NewGraph(autoNormalize bool) *Graph {
	return &Graph{
		nodes:         make(map[string]*Node),
		children:      make(map[string][]string),
		parent:        make(map[string]*string),
		AutoNormalize: autoNormalize,
	}
}

// Clear empties the graph and resets the total reliability.
func (g *Graph) Clear() {
	g.nodes = make(map[string]*Node)
	g.children = make(map[string][]string)
	g.parent = make(map[string]*string)
	g.root = nil
	g.reliabilityTotal = nil
}

// Root returns the root node id, or "" with ok=false when the graph is empty.
func (g *Graph) Root() (string, bool) {
	if g.root == nil {
		return "", false
	}
	return *g.root, true
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Children returns the ordered child ids of id (empty for components or
// childless gates).
func (g *Graph) Children(id string) []string {
	chs := g.children[id]
	out := make([]string, len(chs))
	copy(out, chs)
	return out
}

// Parent returns the parent id of id, or "" with ok=false for the root or an
// unknown node.
func (g *Graph) Parent(id string) (string, bool) {
	p, ok := g.parent[id]
	if !ok || p == nil {
		return "", false
	}
	return *p, true
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// ReliabilityTotal returns the last-evaluated root reliability, if any.
func (g *Graph) ReliabilityTotal() (float64, bool) {
	if g.reliabilityTotal == nil {
		return 0, false
	}
	return *g.reliabilityTotal, true
}

// SetReliabilityTotal is used by the evaluator to record the root's
// evaluated reliability.
func (g *Graph) SetReliabilityTotal(r float64) { g.reliabilityTotal = &r }

// ClearReliability resets every node's cached reliability and the graph's
// total, without touching structure. Mirrors the original's
// ReliabilityGraph.clear_reliability.
func (g *Graph) ClearReliability() {
	for _, n := range g.nodes {
		n.resetEvaluation()
	}
	g.reliabilityTotal = nil
}

// AddNode registers node in the graph. The first node added becomes root.
func (g *Graph) AddNode(node *Node) error {
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, node.ID)
	}
	g.nodes[node.ID] = node
	g.children[node.ID] = nil
	g.parent[node.ID] = nil
	if g.root == nil {
		id := node.ID
		g.root = &id
	}
	return nil
}

// AddEdge appends child to parent's child sequence and sets child's parent.
func (g *Graph) AddEdge(parent, child string) error {
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, parent)
	}
	if _, ok := g.nodes[child]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, child)
	}
	if p := g.parent[child]; p != nil {
		return fmt.Errorf("%w: %q", ErrAlreadyHasParent, child)
	}
	g.children[parent] = append(g.children[parent], child)
	p := parent
	g.parent[child] = &p
	return nil
}

// RemoveNode removes id from the graph, adopting a lone gate child into the
// parent's slot, and normalizes afterward if AutoNormalize is set.
func (g *Graph) RemoveNode(id string) error {
	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}

	if node.IsGate() {
		if err := g.removeGate(id); err != nil {
			return err
		}
	} else {
		g.removeComponent(id)
	}

	if g.AutoNormalize {
		g.Normalize()
	}
	return nil
}

func (g *Graph) removeGate(id string) error {
	chs := append([]string(nil), g.children[id]...)
	if len(chs) > 1 {
		return fmt.Errorf("%w: %q", ErrAmbiguousRemoval, id)
	}

	var adopt *string
	if len(chs) == 1 {
		adopt = &chs[0]
	}
	p := g.parent[id]

	if p == nil {
		if adopt != nil {
			g.parent[*adopt] = nil
			g.root = adopt
		} else {
			g.root = nil
		}
	} else {
		g.replaceChild(*p, id, adopt)
	}

	g.children[id] = nil
	g.deleteNode(id)
	return nil
}

func (g *Graph) removeComponent(id string) {
	p := g.parent[id]
	if p == nil {
		g.deleteNode(id)
		g.root = nil
		return
	}
	g.children[*p] = removeString(g.children[*p], id)
	g.parent[id] = nil
	g.deleteNode(id)
}

func (g *Graph) deleteNode(id string) {
	for _, child := range g.children[id] {
		if p := g.parent[child]; p != nil && *p == id {
			g.parent[child] = nil
		}
	}
	delete(g.children, id)
	delete(g.parent, id)
	delete(g.nodes, id)
}

// replaceChild swaps oldChild for newChild in parentID's child sequence.
// newChild == nil removes oldChild outright (used for deleting empty gates).
func (g *Graph) replaceChild(parentID, oldChild string, newChild *string) {
	chs := g.children[parentID]
	for i, c := range chs {
		if c == oldChild {
			if newChild == nil {
				g.children[parentID] = append(chs[:i], chs[i+1:]...)
			} else {
				chs[i] = *newChild
				g.children[parentID] = chs
				p := parentID
				g.parent[*newChild] = &p
			}
			break
		}
	}
	g.parent[oldChild] = nil
}

// insertChildAfter inserts newChild immediately after afterChild in
// parentID's child sequence.
func (g *Graph) insertChildAfter(parentID, afterChild, newChild string) error {
	if _, ok := g.children[parentID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, parentID)
	}
	if _, ok := g.nodes[newChild]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, newChild)
	}
	if p := g.parent[newChild]; p != nil {
		return fmt.Errorf("%w: %q", ErrAlreadyHasParent, newChild)
	}

	chs := g.children[parentID]
	idx := indexOf(chs, afterChild)
	if idx < 0 {
		chs = append(chs, newChild)
	} else {
		chs = append(chs, "")
		copy(chs[idx+2:], chs[idx+1:])
		chs[idx+1] = newChild
	}
	g.children[parentID] = chs
	p := parentID
	g.parent[newChild] = &p
	return nil
}

// GateEditParams names the subset of gate fields EditGate may update.
type GateEditParams struct {
	K     *int
	Name  *string
	Label *string
}

// EditGate updates params on the gate id. Only KOON gates accept K; K is
// clamped to [1, max(1,child_count)] and rejected with ErrInvalidK when out
// of range for a gate that already has children.
func (g *Graph) EditGate(id string, params GateEditParams) error {
	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	if !node.IsGate() {
		return fmt.Errorf("%w: edit_gate requires a gate, got component %q", ErrWrongNodeKind, id)
	}

	if node.Gate.Subtype == GateKOON && params.K != nil {
		n := len(g.children[id])
		k := *params.K
		if n <= 0 {
			k = 1
		} else if k < 1 || k > n {
			return fmt.Errorf("%w: k=%d must be within [1,%d]", ErrInvalidK, k, n)
		}
		node.Gate.K = k
	}
	if params.Name != nil {
		node.Gate.Name = *params.Name
	}
	if params.Label != nil {
		node.Gate.Label = *params.Label
	}

	if g.AutoNormalize {
		g.Normalize()
	}
	return nil
}

// EditComponent updates the distribution of oldID and optionally renames it
// to newID, rewiring children/parent/root references.
func (g *Graph) EditComponent(oldID, newID string, distKind DistKind) error {
	node, ok := g.nodes[oldID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, oldID)
	}
	if !node.IsComponent() {
		return fmt.Errorf("%w: edit_component requires a component, got gate %q", ErrWrongNodeKind, oldID)
	}
	if newID != oldID {
		if _, exists := g.nodes[newID]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateID, newID)
		}
	}

	node.Component.DistKind = distKind

	if newID == oldID {
		if g.AutoNormalize {
			g.Normalize()
		}
		return nil
	}

	g.renameNode(oldID, newID)

	if g.AutoNormalize {
		g.Normalize()
	}
	return nil
}

func (g *Graph) renameNode(oldID, newID string) {
	node := g.nodes[oldID]
	children := g.children[oldID]
	parentID := g.parent[oldID]

	delete(g.children, oldID)
	delete(g.parent, oldID)
	delete(g.nodes, oldID)

	node.ID = newID
	g.nodes[newID] = node
	g.children[newID] = children
	g.parent[newID] = parentID

	for _, childID := range children {
		p := newID
		g.parent[childID] = &p
	}

	if parentID != nil {
		chs := g.children[*parentID]
		for i, cid := range chs {
			if cid == oldID {
				chs[i] = newID
				break
			}
		}
	}

	if g.root != nil && *g.root == oldID {
		g.root = &newID
	}
}

// AddComponentRelative is the central structural primitive: it creates a new
// component and wires it into the tree relative to target via relation
// (series/parallel/koon), per §4.1 of the specification.
func (g *Graph) AddComponentRelative(targetID, newCompID string, relation Relation, distKind DistKind, k *int, unitType string) error {
	if _, exists := g.nodes[newCompID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, newCompID)
	}
	if _, ok := g.nodes[targetID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, targetID)
	}
	wantGate, err := relation.gateType()
	if err != nil {
		return err
	}

	if err := g.AddNode(NewComponentNode(newCompID, distKind, unitType)); err != nil {
		return err
	}

	targetParent := g.parent[targetID]

	if relation == RelationKoon {
		handled, err := g.handleKoonInsertion(targetID, newCompID, targetParent, k)
		if err != nil {
			return err
		}
		if handled {
			if g.AutoNormalize {
				g.Normalize()
			}
			return nil
		}
	}

	// Case 1: target's parent is already the desired gate type.
	if targetParent != nil && g.isGate(*targetParent, wantGate) {
		if err := g.insertChildAfter(*targetParent, targetID, newCompID); err != nil {
			return err
		}
		if g.AutoNormalize {
			g.Normalize()
		}
		return nil
	}

	// Case 2: target itself is the desired gate and is root.
	if targetParent == nil && g.isGate(targetID, wantGate) {
		if err := g.AddEdge(targetID, newCompID); err != nil {
			return err
		}
		if g.AutoNormalize {
			g.Normalize()
		}
		return nil
	}

	// Case 3: interpose a new gate between target's parent (or root) and target.
	gateID, err := g.interposeGate(targetID, targetParent, wantGate, k)
	if err != nil {
		return err
	}
	if err := g.AddEdge(gateID, newCompID); err != nil {
		return err
	}
	if g.AutoNormalize {
		g.Normalize()
	}
	return nil
}

func (g *Graph) isGate(id string, subtype GateSubtype) bool {
	n := g.nodes[id]
	return n != nil && n.IsGate() && n.Gate.Subtype == subtype
}

// handleKoonInsertion implements the two KOON special cases tried before the
// generic insertion logic. Returns handled=true when it fully wired the new
// component.
func (g *Graph) handleKoonInsertion(targetID, newCompID string, targetParent *string, k *int) (bool, error) {
	if g.isGate(targetID, GateKOON) {
		return true, g.AddEdge(targetID, newCompID)
	}

	if targetParent != nil && g.isGate(*targetParent, GateKOON) {
		targetNode := g.nodes[targetID]
		if targetNode.IsComponent() {
			gateID, err := g.interposeGate(targetID, targetParent, GateKOON, k)
			if err != nil {
				return false, err
			}
			return true, g.AddEdge(gateID, newCompID)
		}
	}

	return false, nil
}

// interposeGate creates a new gate of gateType between targetParent and
// target, replacing target in its parent's slot (or becoming root), and
// returns the new gate's id.
func (g *Graph) interposeGate(targetID string, targetParent *string, gateType GateSubtype, k *int) (string, error) {
	prefix := map[GateSubtype]string{
		GateAND:  "G_and",
		GateOR:   "G_or",
		GateKOON: "G_koon",
	}[gateType]
	if prefix == "" {
		prefix = "G_auto"
	}
	gateID := g.allocGateID(prefix)

	var kVal int
	if gateType == GateKOON {
		if k == nil {
			return "", ErrKRequired
		}
		kVal = *k
	}
	gateNode := NewGateNode(gateID, gateType, kVal, "", "")
	if err := g.AddNode(gateNode); err != nil {
		return "", err
	}

	if targetParent == nil {
		g.root = &gateID
	} else {
		gid := gateID
		g.replaceChild(*targetParent, targetID, &gid)
	}

	if err := g.AddEdge(gateID, targetID); err != nil {
		return "", err
	}
	return gateID, nil
}

// allocGateID returns the smallest "<prefix>_<n>" (n>=1) not already used.
func (g *Graph) allocGateID(prefix string) string {
	for len(prefix) > 0 && prefix[len(prefix)-1] == '_' {
		prefix = prefix[:len(prefix)-1]
	}
	n := 1
	for {
		candidate := fmt.Sprintf("%s_%d", prefix, n)
		if _, exists := g.nodes[candidate]; !exists {
			return candidate
		}
		n++
	}
}

// Normalize collapses every gate in postorder: a 1-child gate is replaced by
// its child; a 0-child gate is deleted; multi-child gates are untouched.
func (g *Graph) Normalize() {
	if g.root == nil {
		return
	}

	var visited []string
	stack := []string{*g.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited = append(visited, id)
		stack = append(stack, g.children[id]...)
	}

	for i := len(visited) - 1; i >= 0; i-- {
		id := visited[i]
		if n, ok := g.nodes[id]; ok && n.IsGate() {
			g.tryCollapseGate(id)
		}
	}
}

func (g *Graph) tryCollapseGate(gateID string) {
	gid := gateID
	for {
		n, ok := g.nodes[gid]
		if !ok || !n.IsGate() {
			return
		}
		chs := g.children[gid]
		gp := g.parent[gid]

		switch len(chs) {
		case 1:
			only := chs[0]
			if gp == nil {
				g.root = &only
				g.parent[only] = nil
			} else {
				o := only
				g.replaceChild(*gp, gid, &o)
			}
			g.deleteNode(gid)
			if gp == nil {
				return
			}
			gid = *gp
		case 0:
			if gp == nil {
				g.root = nil
			} else {
				g.children[*gp] = removeString(g.children[*gp], gid)
			}
			g.deleteNode(gid)
			if gp == nil {
				return
			}
			gid = *gp
		default:
			return
		}
	}
}

// ToExpression renders the tree as an algebraic string: AND joins with " & ",
// OR with " || ", KOON as "KOON[k/n](...)".
func (g *Graph) ToExpression() string {
	if g.root == nil {
		return "(empty)"
	}
	return g.expr(*g.root)
}

func (g *Graph) expr(id string) string {
	node := g.nodes[id]
	if node.IsComponent() {
		return node.ID
	}

	kids := g.children[id]
	parts := make([]string, len(kids))
	for i, k := range kids {
		parts[i] = g.expr(k)
	}

	switch node.Gate.Subtype {
	case GateAND:
		return "(" + joinWith(parts, " & ") + ")"
	case GateOR:
		return "(" + joinWith(parts, " || ") + ")"
	case GateKOON:
		return fmt.Sprintf("KOON[%d/%d](%s)", node.Gate.K, len(kids), joinWith(parts, ", "))
	default:
		return "(" + joinWith(parts, " ? ") + ")"
	}
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}

func removeString(s []string, v string) []string {
	out := s[:0:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

func joinWith(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += sep + p
	}
	return out
}
