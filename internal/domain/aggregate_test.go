package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event builds a test SpawnEvent with the given year, start DOY, and biomass.
func event(code string, year, doy int, biomass float64) SpawnEvent {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	return SpawnEvent{
		LocationCode: code,
		Geo:          Geo{Lat: 48.9, Lon: -125.3},
		StartDate:    start,
		StartDOY:     doy,
		Year:         year,
		BiomassIndex: biomass,
	}
}

func TestGroupByLocation(t *testing.T) {
	events := []SpawnEvent{
		event("A", 2020, 70, 5),
		event("B", 2021, 80, 0),
		event("A", 2022, 75, 8),
	}

	groups := GroupByLocation(events)

	require.Len(t, groups, 2)
	assert.Len(t, groups["A"], 2)
	assert.Len(t, groups["B"], 1)
}

func TestFilterMeasuredLocations(t *testing.T) {
	groups := map[string][]SpawnEvent{
		"MEASURED": {event("MEASURED", 2020, 70, 0), event("MEASURED", 2021, 72, 9)},
		"ZEROES":   {event("ZEROES", 2020, 70, 0), event("ZEROES", 2021, 71, 0)},
	}

	retained := FilterMeasuredLocations(groups)

	require.Len(t, retained, 1)
	assert.Contains(t, retained, "MEASURED")
	assert.Len(t, retained["MEASURED"], 2, "all events kept, including the zero-index one")
}

func TestSummarizeLocation(t *testing.T) {
	t.Run("biomass over measured, timing over all", func(t *testing.T) {
		// Two observed-only events and two measured ones.
		events := []SpawnEvent{
			event("A", 2020, 60, 0),
			event("A", 2021, 70, 0),
			event("A", 2022, 80, 12),
			event("A", 2023, 90, 18),
		}

		sum, err := SummarizeLocation(events, 2025)

		require.NoError(t, err)
		assert.Equal(t, 4, sum.TotalEventCount)
		assert.Equal(t, 2, sum.MeasuredEventCount)
		assert.Equal(t, 4, sum.YearsObserved)

		// Biomass moments use only the measured values {12, 18}.
		assert.InDelta(t, 15.0, sum.AvgBiomass, 1e-9)
		assert.InDelta(t, 15.0, sum.MedianBiomass, 1e-9)
		assert.InDelta(t, 18.0, sum.MaxBiomass, 1e-9)
		assert.InDelta(t, math.Sqrt(18), sum.SDBiomass, 1e-9)

		// Timing moments use all four start DOYs {60, 70, 80, 90}.
		assert.InDelta(t, 75.0, sum.AvgStartDOY, 1e-9)
		assert.Equal(t, 60, sum.EarliestDOY)
		assert.Equal(t, 90, sum.LatestDOY)

		assert.Equal(t, 2023, sum.MostRecentYear)
		assert.Equal(t, 1, sum.YearsSinceLastSpawn)
	})

	t.Run("single measured event has undefined biomass SD", func(t *testing.T) {
		events := []SpawnEvent{
			event("A", 2022, 80, 12),
			event("A", 2023, 85, 0),
		}

		sum, err := SummarizeLocation(events, 2025)

		require.NoError(t, err)
		assert.Equal(t, 1, sum.MeasuredEventCount)
		assert.True(t, math.IsNaN(sum.SDBiomass), "SD of one sample must be NaN, never 0")
		assert.True(t, math.IsNaN(sum.SDLogBiomass))
		assert.False(t, math.IsNaN(sum.SDStartDOY), "two timing samples exist")
	})

	t.Run("no measured events", func(t *testing.T) {
		events := []SpawnEvent{event("A", 2022, 80, 0)}

		_, err := SummarizeLocation(events, 2025)

		require.ErrorIs(t, err, ErrNoMeasuredEvents)
	})

	t.Run("no events", func(t *testing.T) {
		_, err := SummarizeLocation(nil, 2025)
		require.Error(t, err)
	})

	t.Run("last spawn in final window year is zero stale", func(t *testing.T) {
		events := []SpawnEvent{
			event("A", 2023, 80, 5),
			event("A", 2024, 82, 7),
		}

		sum, err := SummarizeLocation(events, 2025)

		require.NoError(t, err)
		assert.Equal(t, 0, sum.YearsSinceLastSpawn)
	})

	t.Run("staleness never negative", func(t *testing.T) {
		// An in-season survey row from the target year itself.
		events := []SpawnEvent{
			event("A", 2024, 80, 5),
			event("A", 2025, 82, 7),
		}

		sum, err := SummarizeLocation(events, 2025)

		require.NoError(t, err)
		assert.Equal(t, 0, sum.YearsSinceLastSpawn)
	})

	t.Run("log biomass SD", func(t *testing.T) {
		events := []SpawnEvent{
			event("A", 2022, 80, 12),
			event("A", 2023, 90, 18),
		}

		sum, err := SummarizeLocation(events, 2025)
		require.NoError(t, err)

		logs := []float64{math.Log(13), math.Log(19)}
		mean := (logs[0] + logs[1]) / 2
		want := math.Sqrt(math.Pow(logs[0]-mean, 2) + math.Pow(logs[1]-mean, 2))
		assert.InDelta(t, want, sum.SDLogBiomass, 1e-9)
	})
}

func TestFilterSufficient(t *testing.T) {
	summaries := map[string]LocationSummary{
		"ONE": {LocationCode: "ONE", MeasuredEventCount: 1},
		"TWO": {LocationCode: "TWO", MeasuredEventCount: 2},
		"TEN": {LocationCode: "TEN", MeasuredEventCount: 10},
	}

	kept := FilterSufficient(summaries, 2)

	require.Len(t, kept, 2)
	assert.NotContains(t, kept, "ONE", "a single measurement cannot support an interval")
	assert.Contains(t, kept, "TWO")
	assert.Contains(t, kept, "TEN")
}

func TestSortedCodes(t *testing.T) {
	m := map[string][]SpawnEvent{"C": nil, "A": nil, "B": nil}

	assert.Equal(t, []string{"A", "B", "C"}, SortedCodes(m))
}
