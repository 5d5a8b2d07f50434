package service_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jtomasevic/rbd/graph"
	"github.com/jtomasevic/rbd/service"
)

// FuzzGraphService_UndoRedoRebuild drives random mutation/undo/redo
// sequences against a GraphService and checks two properties after every
// step: P6 (an append issued while a redo tail is pending discards that
// tail, so the subsequent Redo must report no movement) and P4 (Rebuild
// applied twice to the same active event sequence produces byte-identical
// GraphData, i.e. replay is a pure function of the event list). Grounded on
// simon-lentz-yammm/graph/concurrent_fuzz_test.go's native fuzz-function
// style and on rebuild_test.go's existing determinism checks, generalized
// here to an arbitrary randomized sequence instead of a handful of
// hand-picked scenarios.
func FuzzGraphService_UndoRedoRebuild(f *testing.F) {
	f.Add(int64(1), 25)
	f.Add(int64(17), 50)
	f.Add(int64(2025), 70)
	f.Add(int64(-5), 40)

	f.Fuzz(func(t *testing.T, seed int64, opsRaw int) {
		ops := opsRaw % 70
		if ops < 0 {
			ops = -ops
		}
		if ops < 1 {
			ops = 1
		}

		r := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fuzz driver, not security-sensitive
		s := service.New("fuzz-actor")

		nextID := 0
		newID := func() string {
			nextID++
			return fmt.Sprintf("n%d", nextID)
		}

		pendingRedo := false   // an undo has left a redo tail
		tailDiscarded := false // a mutation was appended after that undo

		for i := 0; i < ops; i++ {
			data := s.Graph.ToData()
			var allIDs, compIDs, gateIDs []string
			for _, n := range data.Nodes {
				allIDs = append(allIDs, n.ID)
				if n.Type == "component" {
					compIDs = append(compIDs, n.ID)
				} else {
					gateIDs = append(gateIDs, n.ID)
				}
			}

			mutated := false
			switch {
			case len(allIDs) == 0:
				require.NoError(t, s.AddRootComponent(newID(), graph.DistExponential, ""))
				mutated = true
			default:
				switch r.Intn(8) {
				case 0:
					target := allIDs[r.Intn(len(allIDs))]
					if s.AddSeries(target, newID(), graph.DistExponential, "") == nil {
						mutated = true
					}
				case 1:
					target := allIDs[r.Intn(len(allIDs))]
					if s.AddParallel(target, newID(), graph.DistExponential, "") == nil {
						mutated = true
					}
				case 2:
					target := allIDs[r.Intn(len(allIDs))]
					k := r.Intn(3) + 1
					if s.AddKoon(target, newID(), graph.DistExponential, k, "") == nil {
						mutated = true
					}
				case 3:
					target := allIDs[r.Intn(len(allIDs))]
					if s.RemoveNode(target) == nil {
						mutated = true
					}
				case 4:
					if len(compIDs) > 0 {
						target := compIDs[r.Intn(len(compIDs))]
						if s.EditComponent(target, newID(), graph.DistWeibull) == nil {
							mutated = true
						}
					}
				case 5:
					if len(gateIDs) > 0 {
						target := gateIDs[r.Intn(len(gateIDs))]
						k := r.Intn(4) + 1
						if s.EditGate(target, graph.GateEditParams{K: &k}) == nil {
							mutated = true
						}
					}
				case 6:
					if tailDiscarded {
						require.False(t, s.Redo(), "P6: append after undo must discard the redo tail")
						tailDiscarded = false
					} else {
						s.Redo()
					}
				case 7:
					if s.Undo() {
						pendingRedo = true
						tailDiscarded = false
					}
				}
			}

			if mutated {
				tailDiscarded = tailDiscarded || pendingRedo
				pendingRedo = false
			}

			active := s.Log.Active()
			g1 := service.Rebuild(active)
			g2 := service.Rebuild(active)
			require.Equal(t, g1.ToData(), g2.ToData(), "P4: rebuild must be a pure function of the active event sequence")
			require.Equal(t, s.Graph.ToData(), g1.ToData(), "service graph must match rebuild(active)")
		}
	})
}
