package graph

import "sort"

// NodeData is the wire representation of a single Node, matching the
// Serialized Graph shape of the specification. Exactly the fields relevant
// to Type are populated on write; FromData tolerates absent optional fields.
type NodeData struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	DistKind    string  `json:"dist,omitempty"`
	UnitType    string  `json:"unit_type,omitempty"`
	Reliability *float64 `json:"reliability,omitempty"`
	Conflict    bool    `json:"conflict,omitempty"`

	Subtype string  `json:"subtype,omitempty"`
	K       int     `json:"k,omitempty"`
	Name    string  `json:"name,omitempty"`
	Label   string  `json:"label,omitempty"`
	GUID    string  `json:"guid,omitempty"`
}

// EdgeData is the wire representation of a single parent->child edge.
type EdgeData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphData is the full lossless serialization of a Graph: ToData/FromData
// round-trip every field including cached reliability and conflict flags,
// per §4.1's to_data/from_data contract.
type GraphData struct {
	Nodes            []NodeData `json:"nodes"`
	Edges            []EdgeData `json:"edges"`
	Root             *string    `json:"root,omitempty"`
	ReliabilityTotal *float64   `json:"reliability_total,omitempty"`
}

// ToData renders the graph as a GraphData value, with nodes sorted by id so
// repeated calls on an unchanged graph are byte-identical.
func (g *Graph) ToData() GraphData {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data := GraphData{
		ReliabilityTotal: g.reliabilityTotal,
	}
	if g.root != nil {
		root := *g.root
		data.Root = &root
	}

	for _, id := range ids {
		n := g.nodes[id]
		nd := NodeData{ID: n.ID}
		if n.IsComponent() {
			nd.Type = "component"
			nd.DistKind = string(n.Component.DistKind)
			nd.UnitType = n.Component.UnitType
			nd.Reliability = n.Component.Reliability
			nd.Conflict = n.Component.Conflict
		} else {
			nd.Type = "gate"
			nd.Subtype = string(n.Gate.Subtype)
			nd.K = n.Gate.K
			nd.Name = n.Gate.Name
			nd.Label = n.Gate.Label
			nd.GUID = n.Gate.GUID
			nd.Reliability = n.Gate.Reliability
		}
		data.Nodes = append(data.Nodes, nd)

		for _, child := range g.children[id] {
			data.Edges = append(data.Edges, EdgeData{From: id, To: child})
		}
	}

	return data
}

// FromData replaces g's contents with the graph described by data. Nodes are
// added before edges, and reliability/conflict fields are restored after
// structural wiring so ClearReliability-sensitive callers see a
// fully-populated graph immediately.
func (g *Graph) FromData(data GraphData) error {
	g.Clear()

	for _, nd := range data.Nodes {
		var node *Node
		switch nd.Type {
		case "component":
			node = NewComponentNode(nd.ID, DistKind(nd.DistKind), nd.UnitType)
			node.Component.Conflict = nd.Conflict
			node.Component.Reliability = nd.Reliability
		case "gate":
			node = NewGateNode(nd.ID, GateSubtype(nd.Subtype), nd.K, nd.Name, nd.Label)
			if nd.GUID != "" {
				node.Gate.GUID = nd.GUID
			}
			node.Gate.Reliability = nd.Reliability
		default:
			continue
		}
		if err := g.AddNode(node); err != nil {
			return err
		}
	}

	// AddNode assigns the first inserted node as root; override with the
	// serialized root once all nodes exist, then wire edges, which rely on
	// g.parent being correctly seeded only by AddEdge itself.
	g.root = nil
	if data.Root != nil {
		root := *data.Root
		g.root = &root
	}

	for _, ed := range data.Edges {
		if err := g.AddEdge(ed.From, ed.To); err != nil {
			return err
		}
	}

	g.reliabilityTotal = data.ReliabilityTotal
	return nil
}
