package estimator_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jtomasevic/rbd/estimator"
	"github.com/jtomasevic/rbd/graph"
)

type memCache struct {
	state estimator.CacheState
}

func (m *memCache) Load() (estimator.CacheState, error) { return m.state, nil }
func (m *memCache) Save(s estimator.CacheState) error   { m.state = s; return nil }

func newCacheWithRows(id string, rows ...estimator.FailureRow) *memCache {
	return &memCache{state: estimator.CacheState{
		Items: map[string]estimator.ComponentFailures{
			id: {Rows: rows},
		},
	}}
}

// Scenario 6 of §8: exponential reliability from history.
func TestReliability_ExponentialScenario6(t *testing.T) {
	cache := newCacheWithRows("C1",
		estimator.FailureRow{Date: "2025-01-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-01-11", Type: "corrective"},
		estimator.FailureRow{Date: "2025-01-21", Type: "preventive"},
	)
	est := estimator.New(cache, nil)

	asOf := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	r, enough, err := est.Reliability("C1", graph.DistExponential, asOf)
	require.NoError(t, err)
	require.True(t, enough)
	require.InDelta(t, math.Exp(-0.1*10), r, 1e-6)
	require.InDelta(t, 0.3679, r, 1e-4)
}

func TestReliability_NoHistoryReturnsFallback(t *testing.T) {
	cache := &memCache{}
	est := estimator.New(cache, nil)

	r, enough, err := est.Reliability("unknown", graph.DistExponential, time.Now())
	require.NoError(t, err)
	require.False(t, enough)
	require.Equal(t, estimator.FallbackR, r)
}

func TestReliability_BeforeLastFailureReturnsOne(t *testing.T) {
	cache := newCacheWithRows("C1", estimator.FailureRow{Date: "2025-06-01", Type: "preventive"})
	est := estimator.New(cache, nil)

	asOf := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r, _, err := est.Reliability("C1", graph.DistExponential, asOf)
	require.NoError(t, err)
	require.Equal(t, 1.0, r)
}

func TestReliability_TooFewIntervalsFallsBack(t *testing.T) {
	cache := newCacheWithRows("C1", estimator.FailureRow{Date: "2025-01-01", Type: "preventive"})
	est := estimator.New(cache, nil)

	r, enough, err := est.Reliability("C1", graph.DistExponential, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, enough)
	require.Equal(t, estimator.FallbackR, r)
}

// §4.3's numeric age branch: t is treated directly as days of age, bypassing
// the last-failure lookup entirely (original_source/.../dist.py:Dist.reliability,
// tested in test_dist.py:test_reliability_exponential_numeric_age_uses_stubbed_params).
func TestReliabilityAtAge_ExponentialNumericAge(t *testing.T) {
	cache := newCacheWithRows("C1",
		estimator.FailureRow{Date: "2025-01-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-01-11", Type: "corrective"},
		estimator.FailureRow{Date: "2025-01-21", Type: "preventive"},
	)
	est := estimator.New(cache, nil)

	r, enough, err := est.ReliabilityAtAge("C1", graph.DistExponential, 30)
	require.NoError(t, err)
	require.True(t, enough)
	require.InDelta(t, math.Exp(-0.1*30), r, 1e-6)
}

// A numeric age never consults recorded failure dates, so it is unaffected
// by an age that would otherwise have preceded the last recorded failure
// under the date branch (contrast with TestReliability_BeforeLastFailureReturnsOne).
func TestReliabilityAtAge_IgnoresFailureDateOrdering(t *testing.T) {
	cache := newCacheWithRows("C1",
		estimator.FailureRow{Date: "2025-01-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-01-11", Type: "corrective"},
		estimator.FailureRow{Date: "2025-01-21", Type: "preventive"},
	)
	est := estimator.New(cache, nil)

	r, enough, err := est.ReliabilityAtAge("C1", graph.DistExponential, 10)
	require.NoError(t, err)
	require.True(t, enough)
	require.InDelta(t, math.Exp(-0.1*10), r, 1e-6)
	require.NotEqual(t, 1.0, r)
}

func TestReliabilityAtAge_TooFewIntervalsFallsBack(t *testing.T) {
	cache := newCacheWithRows("C1", estimator.FailureRow{Date: "2025-01-01", Type: "preventive"})
	est := estimator.New(cache, nil)

	r, enough, err := est.ReliabilityAtAge("C1", graph.DistWeibull, 10)
	require.NoError(t, err)
	require.False(t, enough)
	require.Equal(t, estimator.FallbackR, r)
}

func TestReliability_WeibullWithinUnitInterval(t *testing.T) {
	cache := newCacheWithRows("C1",
		estimator.FailureRow{Date: "2025-01-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-01-15", Type: "corrective"},
		estimator.FailureRow{Date: "2025-02-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-02-20", Type: "corrective"},
	)
	est := estimator.New(cache, nil)

	r, enough, err := est.Reliability("C1", graph.DistWeibull, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, enough)
	require.GreaterOrEqual(t, r, 0.0)
	require.LessOrEqual(t, r, 1.0)
}

type fakeClient struct {
	rows []estimator.FetchedFailure
}

func (f *fakeClient) FetchFor(ids []string) ([]estimator.FetchedFailure, error) {
	return f.rows, nil
}

func TestEnsureMinRecords_OnlyFetchesBelowThreshold(t *testing.T) {
	cache := newCacheWithRows("C1",
		estimator.FailureRow{Date: "2025-01-01", Type: "preventive"},
		estimator.FailureRow{Date: "2025-01-11", Type: "corrective"},
	)
	client := &fakeClient{rows: []estimator.FetchedFailure{
		{ComponentID: "C2", FailureDate: "2025-01-05", TypeFailure: "preventive"},
	}}
	est := estimator.New(cache, client)

	touched, err := est.EnsureMinRecords([]string{"C1", "C2"}, 2)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"C2": true}, touched)
}
