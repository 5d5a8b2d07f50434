package service_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/graph"
	"github.com/jtomasevic/rbd/service"
)

func versioned(ev eventlog.Event, v int) eventlog.Event {
	ev.Version = &v
	return ev
}

// Scenario 4 of §8: rebuild to a past version, then commit a snapshot plus
// an ignore-range, and confirm rebuilding the extended sequence still
// yields the same graph.
func TestRebuild_Scenario4_RebuildToPastVersionThenIgnoreRange(t *testing.T) {
	events := []eventlog.Event{
		versioned(eventlog.NewAddRootComponent("alice", "A", graph.DistExponential, ""), 1),
		versioned(eventlog.NewAddComponentRelative("alice", "A", "B", graph.RelationSeries, graph.DistExponential, nil, ""), 2),
		versioned(eventlog.NewAddComponentRelative("alice", "B", "C", graph.RelationSeries, graph.DistExponential, nil, ""), 3),
	}

	var upToV2 []eventlog.Event
	for _, ev := range events {
		if *ev.Version <= 2 {
			upToV2 = append(upToV2, ev)
		}
	}
	g1 := service.Rebuild(upToV2)
	require.Equal(t, "(A & B)", g1.ToExpression())

	snapshotEvent := versioned(eventlog.NewSnapshot("alice", g1.ToData()), 4)
	ignoreEvent := versioned(eventlog.NewSetIgnoreRange("alice", 3, 3), 5)

	extended := append(append([]eventlog.Event{}, events...), snapshotEvent, ignoreEvent)
	g2 := service.Rebuild(extended)
	require.Equal(t, "(A & B)", g2.ToExpression())
}

func TestRebuild_ToleratesMissingTargetOnReplay(t *testing.T) {
	events := []eventlog.Event{
		versioned(eventlog.NewAddRootComponent("alice", "A", graph.DistExponential, ""), 1),
		versioned(eventlog.NewRemoveNode("alice", "does-not-exist"), 2),
	}

	g := service.Rebuild(events)
	root, ok := g.Root()
	require.True(t, ok)
	require.Equal(t, "A", root)
}

func TestRebuild_IsDeterministic(t *testing.T) {
	events := []eventlog.Event{
		versioned(eventlog.NewAddRootComponent("alice", "A", graph.DistExponential, ""), 1),
		versioned(eventlog.NewAddComponentRelative("alice", "A", "B", graph.RelationParallel, graph.DistExponential, nil, ""), 2),
	}

	g1 := service.Rebuild(events)
	g2 := service.Rebuild(events)
	require.Equal(t, g1.ToData(), g2.ToData())
}

func TestRebuild_EmptyIsEmptyGraph(t *testing.T) {
	g := service.Rebuild(nil)
	_, ok := g.Root()
	require.False(t, ok)
}
