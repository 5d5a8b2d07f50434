package service

import (
	"sort"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
)

// effectiveVersion returns ev's version, defaulting to its 1-based position
// in the sequence when unset.
func effectiveVersion(ev eventlog.Event, index int) int {
	if ev.Version != nil {
		return *ev.Version
	}
	return index + 1
}

// effectiveIndices implements §4.5.1 step 1: it computes which indices of
// events survive the descending-version "last writer wins" pass over
// set_ignore_range/set_head, and returns them in original order.
func effectiveIndices(events []eventlog.Event) []int {
	n := len(events)
	versions := make([]int, n)
	maxVersion := 0
	for i, ev := range events {
		versions[i] = effectiveVersion(ev, i)
		if versions[i] > maxVersion {
			maxVersion = versions[i]
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return versions[order[a]] > versions[order[b]] })

	ignored := make(map[int]bool)
	for _, idx := range order {
		ver := versions[idx]
		if ignored[ver] {
			continue
		}
		ev := events[idx]

		switch ev.Kind {
		case eventlog.KindSetIgnoreRange:
			a, b := ev.StartV, ev.EndV
			if a > 0 && b > 0 && a <= b {
				for v := a; v <= b; v++ {
					ignored[v] = true
				}
				if ver >= a && ver <= b {
					ignored[ver] = true
				}
			}
		case eventlog.KindSetHead:
			uptoIdx := ev.Upto
			if uptoIdx < 0 {
				uptoIdx = 0
			}
			if uptoIdx > n-1 {
				uptoIdx = n - 1
			}
			uptoVer := versions[uptoIdx]
			if uptoVer < maxVersion {
				for v := uptoVer + 1; v <= maxVersion; v++ {
					ignored[v] = true
				}
			}
		}
	}

	var active []int
	for i, v := range versions {
		if !ignored[v] {
			active = append(active, i)
		}
	}
	return active
}

// Rebuild replays events against a fresh, auto-normalizing Graph and
// returns it. It is the pure, deterministic two-pass algorithm of §4.5.1:
// effective-indices filtering, then a tolerant replay that drops any event
// whose target mutation fails rather than panicking (§9).
func Rebuild(events []eventlog.Event) *graph.Graph {
	g := graph.NewGraph(true)
	for _, i := range effectiveIndices(events) {
		applyEvent(g, events[i])
	}
	return g
}

// applyEvent replays a single event against g, swallowing any failure: a
// dropped event has no effect, matching the original's bare except/KeyError
// tolerance.
func applyEvent(g *graph.Graph, ev eventlog.Event) {
	switch ev.Kind {
	case eventlog.KindSnapshot:
		if ev.SnapshotData != nil {
			_ = g.FromData(*ev.SnapshotData)
		}
	case eventlog.KindAddRootComponent:
		_ = g.AddNode(graph.NewComponentNode(ev.NewCompID, distOrDefault(ev.DistKind), ev.UnitType))
	case eventlog.KindAddComponentRelative:
		_ = g.AddComponentRelative(ev.TargetID, ev.NewCompID, ev.Relation, distOrDefault(ev.DistKind), ev.K, ev.UnitType)
	case eventlog.KindRemoveNode:
		_ = g.RemoveNode(ev.NodeID)
	case eventlog.KindEditComponent:
		_ = g.EditComponent(ev.OldID, ev.NewID, distOrDefault(ev.DistKind))
	case eventlog.KindEditGate:
		_ = g.EditGate(ev.NodeID, graph.GateEditParams{
			K:     ev.GateParams.K,
			Name:  ev.GateParams.Name,
			Label: ev.GateParams.Label,
		})
	case eventlog.KindSetHead, eventlog.KindSetIgnoreRange:
		// already consumed by effectiveIndices.
	}
}

func distOrDefault(d graph.DistKind) graph.DistKind {
	if d == "" {
		return graph.DistExponential
	}
	return d
}
