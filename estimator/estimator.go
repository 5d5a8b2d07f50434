// Package estimator estimates component reliability from failure history,
// fitting exponential or Weibull parameters by maximum likelihood.
package estimator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jtomasevic/rbd/graph"
)

// FallbackR is returned whenever there is not enough history to fit
// parameters, or the component has no recorded failures at all.
const FallbackR = 0.99

// MinIntervalsForOpt is the minimum number of inter-arrival intervals
// required before either MLE is attempted.
const MinIntervalsForOpt = 2

const dateLayout = "2006-01-02"

// FailureRow is a single (date, type) pair as stored in the cache, matching
// the wire shape `[YYYY-MM-DD, type_string]`.
type FailureRow struct {
	Date string
	Type string
}

// ComponentFailures is the per-component cache entry.
type ComponentFailures struct {
	Rows       []FailureRow
	LastUpdate *time.Time
}

// CacheState is the full shape round-tripped by FailureCache.
type CacheState struct {
	Items map[string]ComponentFailures
}

// FailureCache is the persistence port for the local failure history cache
// (§6). It is read-mostly; writes are batched by ReloadFailures.
type FailureCache interface {
	Load() (CacheState, error)
	Save(CacheState) error
}

// FetchedFailure is a single row returned by a FailuresClient fetch.
type FetchedFailure struct {
	ComponentID  string
	FailureDate  string
	TypeFailure string
}

// FailuresClient is the remote catalog port used to refresh the local cache
// (§6). Out of the core's scope to implement; callers inject a concrete
// client.
type FailuresClient interface {
	FetchFor(ids []string) ([]FetchedFailure, error)
}

// Estimator answers reliability queries against an in-memory snapshot of the
// failure cache, loaded lazily from FailureCache. It satisfies
// evaluator.Estimator.
type Estimator struct {
	cache   FailureCache
	client  FailuresClient
	loaded  bool
	state   CacheState
}

// New constructs an Estimator backed by cache (required) and an optional
// client (nil disables ReloadFailures/EnsureMinRecords).
func New(cache FailureCache, client FailuresClient) *Estimator {
	return &Estimator{cache: cache, client: client}
}

func (e *Estimator) ensureLoaded() error {
	if e.loaded {
		return nil
	}
	state, err := e.cache.Load()
	if err != nil {
		return fmt.Errorf("estimator: load failure cache: %w", err)
	}
	if state.Items == nil {
		state.Items = make(map[string]ComponentFailures)
	}
	e.state = state
	e.loaded = true
	return nil
}

// interval holds one inter-arrival sample: age in days and the preventive
// (δ=1) / corrective (δ=0) indicator.
type interval struct {
	age   float64
	delta int
}

func toDelta(s string) int {
	switch normalizeType(s) {
	case "corrective", "correctivo", "m2 - aviso de averia", "m2":
		return 0
	default:
		return 1
	}
}

func normalizeType(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	trimmed := string(out)
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == ' ' || trimmed[len(trimmed)-1] == '\t') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed
}

// sortedFailureDates returns a component's recorded failure dates, ascending.
func (e *Estimator) sortedFailureDates(id string) []time.Time {
	rows := e.state.Items[id].Rows
	dates := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		if t, err := time.Parse(dateLayout, r.Date); err == nil {
			dates = append(dates, t)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// buildIntervals returns the inter-arrival intervals for id, sorted by date;
// fewer than two raw records yields no intervals, matching the original's
// _build_edad_delta.
func (e *Estimator) buildIntervals(id string) []interval {
	rows := e.state.Items[id].Rows
	type dated struct {
		t time.Time
		typ string
	}
	tmp := make([]dated, 0, len(rows))
	for _, r := range rows {
		t, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			continue
		}
		tmp = append(tmp, dated{t: t, typ: r.Type})
	}
	sort.Slice(tmp, func(i, j int) bool { return tmp[i].t.Before(tmp[j].t) })

	if len(tmp) < 2 {
		return nil
	}

	out := make([]interval, 0, len(tmp)-1)
	for i := 1; i < len(tmp); i++ {
		age := tmp[i].t.Sub(tmp[i-1].t).Hours() / 24.0
		out = append(out, interval{age: age, delta: toDelta(tmp[i].typ)})
	}
	return out
}

// HasEnoughRecords reports whether id has at least MinIntervalsForOpt
// inter-arrival intervals on record.
func (e *Estimator) HasEnoughRecords(id string) (bool, error) {
	if err := e.ensureLoaded(); err != nil {
		return false, err
	}
	return len(e.buildIntervals(id)) >= MinIntervalsForOpt, nil
}

// Reliability returns R(asOf) for component id under distKind, and whether
// there was enough history to trust the estimate. It implements the
// date/datetime branch of §4.3's age computation: age_days is the time since
// the component's most recent recorded failure, and an asOf preceding that
// failure returns 1.0. Implements evaluator.Estimator.
func (e *Estimator) Reliability(id string, distKind graph.DistKind, asOf time.Time) (float64, bool, error) {
	if err := e.ensureLoaded(); err != nil {
		return FallbackR, false, err
	}

	dates := e.sortedFailureDates(id)
	if len(dates) == 0 {
		return FallbackR, false, nil
	}
	lastFailure := dates[len(dates)-1]
	ageDays := asOf.Sub(lastFailure).Hours() / 24.0
	if ageDays < 0 {
		// asOf precedes the last recorded failure: treat as fully reliable.
		return 1.0, true, nil
	}

	return e.reliabilityAtAge(id, distKind, ageDays)
}

// ReliabilityAtAge returns R(ageDays) for component id under distKind,
// treating ageDays directly as the component's age rather than deriving it
// from a failure-history lookup. This is the numeric branch of §4.3's age
// computation ("if t is numeric, treat it as days of age"), mirrored from
// original_source/app/src/model/graph/dist.py:Dist.reliability, where a
// numeric t skips _get_sorted_fail_dates entirely and goes straight to
// parameter estimation. Parameters are still fit from the component's
// recorded failure history; only the age itself bypasses that history.
func (e *Estimator) ReliabilityAtAge(id string, distKind graph.DistKind, ageDays float64) (float64, bool, error) {
	if err := e.ensureLoaded(); err != nil {
		return FallbackR, false, err
	}
	return e.reliabilityAtAge(id, distKind, ageDays)
}

// reliabilityAtAge fits distribution parameters from id's recorded failure
// history and evaluates R(ageDays), per §4.3 steps 2-3 of Dist.reliability.
// Shared by the date-based and numeric-age entry points.
func (e *Estimator) reliabilityAtAge(id string, distKind graph.DistKind, ageDays float64) (float64, bool, error) {
	intervals := e.buildIntervals(id)
	if len(intervals) < MinIntervalsForOpt {
		return FallbackR, false, nil
	}

	switch distKind {
	case graph.DistExponential:
		lambda := expMLELambda(intervals)
		return math.Exp(-lambda * math.Max(0, ageDays)), true, nil
	case graph.DistWeibull:
		beta, eta := searchWeibullMLE(intervals)
		if eta <= 0 {
			return FallbackR, false, nil
		}
		x := math.Pow(math.Max(0, ageDays)/eta, beta)
		return math.Exp(-x), true, nil
	default:
		return FallbackR, false, nil
	}
}

func expMLELambda(intervals []interval) float64 {
	mean := meanAge(intervals)
	return 1.0 / math.Max(mean, 1e-6)
}

func meanAge(intervals []interval) float64 {
	sum := 0.0
	for _, iv := range intervals {
		sum += iv.age
	}
	return sum / float64(len(intervals))
}

// weibullLogLikelihood implements ℓ(β,η) exactly as specified in §4.3,
// including the inverted δ=1→log R / δ=0→log f convention. This is
// deliberately NOT the classical censored-data likelihood — see DESIGN.md's
// Open Question decision; preserved as specified rather than "corrected".
func weibullLogLikelihood(beta, eta float64, intervals []interval) float64 {
	if beta <= 0 || eta <= 0 {
		return -1e18
	}
	ll := 0.0
	for _, iv := range intervals {
		t := iv.age
		if t < 0 {
			return -1e18
		}
		x := math.Pow(t/eta, beta)
		r := math.Exp(-x)
		if iv.delta == 1 {
			if r <= 0 {
				return -1e18
			}
			ll += math.Log(math.Max(r, 1e-300))
			continue
		}

		var lam float64
		if t > 0 {
			lam = (beta / eta) * math.Pow(t/eta, beta-1)
		} else if beta > 1 {
			lam = (beta / eta) * 0.0
		} else {
			lam = 0
		}
		f := lam * r
		if f <= 0 {
			return -1e18
		}
		ll += math.Log(math.Max(f, 1e-300))
	}
	return ll
}

// searchWeibullMLE runs the dependency-free coordinate-search optimizer
// specified in §4.3 and §9: 12 refinement rounds, each sweeping β then η
// across a fixed multiplicative/additive candidate set, keeping whichever
// candidate improves the log-likelihood.
func searchWeibullMLE(intervals []interval) (beta, eta float64) {
	meanT := math.Max(1e-3, meanAge(intervals))
	beta = 2.0
	eta = meanT

	bestLL := weibullLogLikelihood(beta, eta, intervals)

	for iter := 0; iter < 12; iter++ {
		candBetas := []float64{beta * 0.5, beta * 0.75, beta * 1.0, beta * 1.25, beta * 1.5}
		for _, shift := range []float64{-0.8, -0.4, 0.4, 0.8} {
			candBetas = append(candBetas, math.Max(0.2, beta+shift))
		}
		cb, cll := beta, bestLL
		for _, b := range candBetas {
			ll := weibullLogLikelihood(b, eta, intervals)
			if ll > cll {
				cb, cll = b, ll
			}
		}
		beta, bestLL = cb, cll

		candEtas := []float64{eta * 0.5, eta * 0.75, eta * 1.0, eta * 1.25, eta * 1.5}
		for _, shift := range []float64{-0.6 * meanT, -0.3 * meanT, 0.3 * meanT, 0.6 * meanT} {
			candEtas = append(candEtas, math.Max(0.1, eta+shift))
		}
		ce, cll2 := eta, bestLL
		for _, ev := range candEtas {
			ll := weibullLogLikelihood(beta, ev, intervals)
			if ll > cll2 {
				ce, cll2 = ev, ll
			}
		}
		eta, bestLL = ce, cll2
	}

	return beta, math.Max(1e-6, eta)
}

// ReloadFailures fetches fresh rows for ids from the client, merges them
// into the cache, persists it, and returns which ids were actually touched.
func (e *Estimator) ReloadFailures(ids []string) (map[string]bool, error) {
	if e.client == nil {
		return nil, fmt.Errorf("estimator: ReloadFailures requires a FailuresClient")
	}
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	fetched, err := e.client.FetchFor(ids)
	if err != nil {
		return nil, fmt.Errorf("estimator: fetch failures: %w", err)
	}

	touched := make(map[string]bool)
	for _, f := range fetched {
		entry := e.state.Items[f.ComponentID]
		entry.Rows = append(entry.Rows, FailureRow{Date: f.FailureDate, Type: f.TypeFailure})
		now := time.Now().UTC()
		entry.LastUpdate = &now
		e.state.Items[f.ComponentID] = entry
		touched[f.ComponentID] = true
	}

	if err := e.cache.Save(e.state); err != nil {
		return touched, fmt.Errorf("estimator: save failure cache: %w", err)
	}
	return touched, nil
}

// EnsureMinRecords refreshes only the ids currently below minRecords rows,
// returning which ids were touched.
func (e *Estimator) EnsureMinRecords(ids []string, minRecords int) (map[string]bool, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	var below []string
	for _, id := range ids {
		if len(e.state.Items[id].Rows) < minRecords {
			below = append(below, id)
		}
	}
	if len(below) == 0 {
		return map[string]bool{}, nil
	}
	return e.ReloadFailures(below)
}
