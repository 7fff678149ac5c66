package energy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const hourMs = int64(3_600_000)

func TestAccumulate_FirstSampleSetsBaselineOnly(t *testing.T) {
	t.Parallel()

	s := Accumulate(State{}, 500, 1_000)
	require.Zero(t, s.WattHours)
	require.NotNil(t, s.LastTsMs)
	require.Equal(t, int64(1_000), *s.LastTsMs)
}

func TestAccumulate_IntegratesElapsedTime(t *testing.T) {
	t.Parallel()

	s := Accumulate(State{}, 100, 0)
	s = Accumulate(s, 100, hourMs)
	require.InDelta(t, 100.0, s.WattHours, 1e-9)
	s = Accumulate(s, 60, hourMs+hourMs/2)
	require.InDelta(t, 130.0, s.WattHours, 1e-9)
	require.InDelta(t, 0.13, s.KWh(), 1e-12)
}

func TestAccumulate_StaleAndDuplicateSamplesSkipped(t *testing.T) {
	t.Parallel()

	s := Accumulate(State{}, 100, 10*hourMs)
	s = Accumulate(s, 100, 11*hourMs)
	before := s.WattHours

	dup := Accumulate(s, 5000, 11*hourMs)
	require.Equal(t, before, dup.WattHours)
	require.Equal(t, 11*hourMs, *dup.LastTsMs)

	stale := Accumulate(s, 5000, 9*hourMs)
	require.Equal(t, before, stale.WattHours)
	require.Equal(t, 9*hourMs, *stale.LastTsMs)
}

func TestAccumulate_WatermarkFollowsOutOfOrderSample(t *testing.T) {
	t.Parallel()

	// a sample stamped far ahead must not stall the in-order ones after it
	s := Accumulate(State{}, 100, 0)
	s = Accumulate(s, 100, 10*hourMs)
	require.InDelta(t, 1000.0, s.WattHours, 1e-9)

	s = Accumulate(s, 100, 5*hourMs)
	require.InDelta(t, 1000.0, s.WattHours, 1e-9)
	require.Equal(t, 5*hourMs, *s.LastTsMs)

	s = Accumulate(s, 100, 6*hourMs)
	require.InDelta(t, 1100.0, s.WattHours, 1e-9)
	require.Equal(t, 6*hourMs, *s.LastTsMs)
}

func TestAccumulate_OverflowingGapAddsNothing(t *testing.T) {
	t.Parallel()

	s := Accumulate(State{}, 120, math.MinInt64)
	s = Accumulate(s, 120, 1_700_000_000_000)
	require.Zero(t, s.WattHours)
	require.Equal(t, int64(1_700_000_000_000), *s.LastTsMs)
}

func TestAccumulate_MonotonicForOrderedSamples(t *testing.T) {
	t.Parallel()

	var s State
	prev := 0.0
	for i := int64(0); i < 200; i++ {
		s = Accumulate(s, float64(i%17)*12.5, i*1_500)
		require.GreaterOrEqual(t, s.WattHours, prev)
		prev = s.WattHours
	}
}

func TestAccumulate_UnusablePowerContributesNothing(t *testing.T) {
	t.Parallel()

	s := Accumulate(State{}, 0, 0)
	for i, p := range []float64{math.NaN(), math.Inf(1), -250} {
		s = Accumulate(s, p, int64(i+1)*hourMs)
		require.Zero(t, s.WattHours)
	}
	require.Equal(t, 3*hourMs, *s.LastTsMs)
}

func TestAccumulate_DoesNotAliasPreviousState(t *testing.T) {
	t.Parallel()

	a := Accumulate(State{}, 10, 1)
	b := Accumulate(a, 10, 2)
	require.Equal(t, int64(1), *a.LastTsMs)
	require.Equal(t, int64(2), *b.LastTsMs)
}
