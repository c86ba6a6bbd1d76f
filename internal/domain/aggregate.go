package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// DefaultMinMeasuredEvents is the minimum number of measured events a
// location needs before a variance estimate (and hence a confidence interval)
// is meaningful. A hard precondition for interval arithmetic, not a heuristic.
const DefaultMinMeasuredEvents = 2

// ErrNoMeasuredEvents is returned by SummarizeLocation when a location has no
// measured events. The location filter removes such locations first, so
// seeing this error indicates the caller skipped that stage.
var ErrNoMeasuredEvents = errors.New("no measured events at location")

// GroupByLocation partitions events by location code, preserving nothing of
// the input order — callers sort codes when determinism matters.
func GroupByLocation(events []SpawnEvent) map[string][]SpawnEvent {
	groups := make(map[string][]SpawnEvent)
	for _, e := range events {
		groups[e.LocationCode] = append(groups[e.LocationCode], e)
	}
	return groups
}

// FilterMeasuredLocations drops locations where every event has a zero
// biomass index. Such locations record known-but-unsurveyed spawning: useful
// context, but unusable for magnitude or probability forecasting.
func FilterMeasuredLocations(groups map[string][]SpawnEvent) map[string][]SpawnEvent {
	retained := make(map[string][]SpawnEvent, len(groups))
	for code, events := range groups {
		for _, e := range events {
			if e.Measured() {
				retained[code] = events
				break
			}
		}
	}
	return retained
}

// SummarizeLocation computes the full historical summary for one location's
// retained events when forecasting for targetYear.
//
// Biomass moments use measured events only; timing moments use all events
// (the spawn date is observable without a dive survey). All standard
// deviations are sample SDs (Bessel's correction) and are NaN when fewer than
// two samples exist — an undefined SD is never reported as zero.
func SummarizeLocation(events []SpawnEvent, targetYear int) (LocationSummary, error) {
	if len(events) == 0 {
		return LocationSummary{}, errors.New("no events at location")
	}

	first := events[0]
	sum := LocationSummary{
		LocationCode:    first.LocationCode,
		LocationName:    first.LocationName,
		Geo:             first.Geo,
		TotalEventCount: len(events),
		EarliestDOY:     first.StartDOY,
		LatestDOY:       first.StartDOY,
	}

	years := make(map[int]struct{}, len(events))
	doys := make([]float64, 0, len(events))
	var measured, logMeasured []float64

	for _, e := range events {
		years[e.Year] = struct{}{}
		doys = append(doys, float64(e.StartDOY))
		if e.StartDOY < sum.EarliestDOY {
			sum.EarliestDOY = e.StartDOY
		}
		if e.StartDOY > sum.LatestDOY {
			sum.LatestDOY = e.StartDOY
		}
		if e.Year > sum.MostRecentYear {
			sum.MostRecentYear = e.Year
		}
		if e.Measured() {
			measured = append(measured, e.BiomassIndex)
			logMeasured = append(logMeasured, math.Log(e.BiomassIndex+1))
		}
	}

	if len(measured) == 0 {
		return LocationSummary{}, fmt.Errorf("location %q: %w", first.LocationCode, ErrNoMeasuredEvents)
	}

	sum.MeasuredEventCount = len(measured)
	sum.YearsObserved = len(years)

	var err error
	if sum.AvgBiomass, err = stats.Mean(measured); err != nil {
		return LocationSummary{}, fmt.Errorf("location %q: biomass mean: %w", first.LocationCode, err)
	}
	if sum.MedianBiomass, err = stats.Median(measured); err != nil {
		return LocationSummary{}, fmt.Errorf("location %q: biomass median: %w", first.LocationCode, err)
	}
	if sum.MaxBiomass, err = stats.Max(measured); err != nil {
		return LocationSummary{}, fmt.Errorf("location %q: biomass max: %w", first.LocationCode, err)
	}
	sum.SDBiomass = sampleSD(measured)
	sum.SDLogBiomass = sampleSD(logMeasured)

	if sum.AvgStartDOY, err = stats.Mean(doys); err != nil {
		return LocationSummary{}, fmt.Errorf("location %q: DOY mean: %w", first.LocationCode, err)
	}
	sum.SDStartDOY = sampleSD(doys)

	// Forecasting targetYear from data through targetYear−1: a location last
	// observed in targetYear−1 is 0 years stale.
	sum.YearsSinceLastSpawn = targetYear - 1 - sum.MostRecentYear
	if sum.YearsSinceLastSpawn < 0 {
		sum.YearsSinceLastSpawn = 0
	}

	return sum, nil
}

// sampleSD returns the Bessel-corrected standard deviation, or NaN when the
// sample has fewer than two elements (undefined, not zero).
func sampleSD(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return math.NaN()
	}
	return sd
}

// FilterSufficient drops summaries with fewer than minMeasured measured
// events, keyed output preserved.
func FilterSufficient(summaries map[string]LocationSummary, minMeasured int) map[string]LocationSummary {
	kept := make(map[string]LocationSummary, len(summaries))
	for code, s := range summaries {
		if s.MeasuredEventCount >= minMeasured {
			kept[code] = s
		}
	}
	return kept
}

// SortedCodes returns the location codes of a group map in lexical order.
func SortedCodes[V any](m map[string]V) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
