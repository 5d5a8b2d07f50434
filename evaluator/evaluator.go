// Package evaluator computes system reliability for a graph.Graph by
// recursive, memoized composition of its gates and components.
package evaluator

import (
	"time"

	"github.com/jtomasevic/rbd/graph"
)

// FallbackR is returned for a component whose reliability cannot be
// estimated (insufficient history, or an estimator error).
const FallbackR = 0.99

// Estimator answers "is this component's reliability well estimated, and
// what is it at asOf" for a single component id. estimator.Estimator
// implements this interface; Evaluate takes it as a narrow port so this
// package never imports estimator directly (mirrors the teacher's own
// interface-at-the-consumer style in pkg/event_network/network.go).
type Estimator interface {
	// Reliability returns R(asOf) for id under distKind, and whether the
	// component's failure history has enough records to trust the
	// estimate. A non-nil error always implies enough=false.
	Reliability(id string, distKind graph.DistKind, asOf time.Time) (r float64, enough bool, err error)
}

// Evaluate computes reliability for every node in g and returns the root's
// value (1.0 for an empty graph). Memoization is by node id and is cleared
// at the start of every call, per §4.2 of the specification.
func Evaluate(g *graph.Graph, est Estimator, asOf time.Time) float64 {
	rootID, ok := g.Root()
	if !ok {
		g.SetReliabilityTotal(1.0)
		return 1.0
	}

	g.ClearReliability()
	memo := make(map[string]float64, g.Len())
	total := evalNode(g, est, asOf, rootID, memo)
	g.SetReliabilityTotal(total)
	return total
}

func evalNode(g *graph.Graph, est Estimator, asOf time.Time, id string, memo map[string]float64) float64 {
	if r, ok := memo[id]; ok {
		return r
	}

	node, ok := g.Node(id)
	if !ok {
		memo[id] = FallbackR
		return FallbackR
	}

	var r float64
	if node.IsComponent() {
		r = evalComponent(g, est, asOf, node)
	} else {
		r = evalGate(g, est, asOf, node, memo)
	}

	memo[id] = r
	node.SetReliability(r)
	return r
}

func evalComponent(g *graph.Graph, est Estimator, asOf time.Time, node *graph.Node) float64 {
	r, enough, err := est.Reliability(node.ID, node.Component.DistKind, asOf)
	node.Component.Conflict = !enough
	if err != nil {
		return FallbackR
	}
	if r < 0 || r > 1 {
		return FallbackR
	}
	return r
}

func evalGate(g *graph.Graph, est Estimator, asOf time.Time, node *graph.Node, memo map[string]float64) float64 {
	children := g.Children(node.ID)
	childR := make([]float64, len(children))
	for i, c := range children {
		childR[i] = evalNode(g, est, asOf, c, memo)
	}

	switch node.Gate.Subtype {
	case graph.GateAND:
		return productReliability(childR)
	case graph.GateOR:
		return 1 - complementProduct(childR)
	case graph.GateKOON:
		return koonReliability(node.Gate.K, childR)
	default:
		return FallbackR
	}
}

func productReliability(ps []float64) float64 {
	r := 1.0
	for _, p := range ps {
		r *= p
	}
	return r
}

func complementProduct(ps []float64) float64 {
	r := 1.0
	for _, p := range ps {
		r *= 1 - p
	}
	return r
}

// koonReliability returns P(at least k of n independent Bernoulli(p_i)
// succeed) via an O(n^2) dynamic program over success counts. k is clamped to [1,n];
// n=0 returns 1.0.
func koonReliability(k int, ps []float64) float64 {
	n := len(ps)
	if n == 0 {
		return 1.0
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	dp := make([]float64, n+1)
	dp[0] = 1.0
	for _, p := range ps {
		for j := n; j >= 1; j-- {
			dp[j] = dp[j]*(1-p) + dp[j-1]*p
		}
		dp[0] = dp[0] * (1 - p)
	}

	sum := 0.0
	for j := k; j <= n; j++ {
		sum += dp[j]
	}
	return sum
}
