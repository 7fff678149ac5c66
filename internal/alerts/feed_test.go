package alerts

import (
	"fmt"
	"testing"
	"time"

	"energy_console/internal/models"

	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestFeed_NewestFirstAndBounded(t *testing.T) {
	t.Parallel()

	f := NewFeed(DefaultCapacity, fixedClock())
	for i := 0; i < 14; i++ {
		f.Add(models.SeverityInfo, fmt.Sprintf("m%d", i))
	}

	got := f.List()
	require.Len(t, got, DefaultCapacity)
	require.Equal(t, "m13", got[0].Message)
	require.Equal(t, "m4", got[len(got)-1].Message)
	require.True(t, got[0].ReceivedAt.After(got[1].ReceivedAt))
}

func TestFeed_PartialFill(t *testing.T) {
	t.Parallel()

	f := NewFeed(3, fixedClock())
	require.Empty(t, f.List())
	f.Add(models.SeverityWarning, "a")
	f.Add(models.SeverityDanger, "b")

	got := f.List()
	require.Len(t, got, 2)
	require.Equal(t, models.SeverityDanger, got[0].Severity)
	require.Equal(t, "a", got[1].Message)
}

func TestFeed_Clear(t *testing.T) {
	t.Parallel()

	f := NewFeed(3, fixedClock())
	f.Add(models.SeverityWarning, "a")
	f.Add(models.SeverityWarning, "b")
	f.Clear()

	got := f.List()
	require.Len(t, got, 1)
	require.Equal(t, "Alerts cleared", got[0].Message)
	require.Equal(t, 1, f.Len())
}
