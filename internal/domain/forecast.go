package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindowYears is the size of the default analysis window: the last
	// ten complete survey years before the target year.
	DefaultWindowYears = 10

	// DefaultLogSDFallback is the fixed log-scale dispersion substituted when
	// the biomass SD is degenerate, so a reported interval is never a single
	// point. A floor on reported uncertainty, not a statistical estimate.
	DefaultLogSDFallback = 0.5

	// z95 is the two-sided 95% normal quantile used for all intervals.
	z95 = 1.96
)

// Weights are the spawn-probability composite weights. They must be
// non-negative and sum to 1.
type Weights struct {
	Frequency   float64
	Recency     float64
	Consistency float64
}

// DefaultWeights is the documented production weighting.
var DefaultWeights = Weights{Frequency: 0.5, Recency: 0.3, Consistency: 0.2}

// Validate checks the weights are non-negative and sum to 1 within tolerance.
func (w Weights) Validate() error {
	if w.Frequency < 0 || w.Recency < 0 || w.Consistency < 0 {
		return errors.New("weights must be non-negative")
	}
	if sum := w.Frequency + w.Recency + w.Consistency; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %g", sum)
	}
	return nil
}

// RecencyStep maps a maximum staleness in years to a recency score.
type RecencyStep struct {
	MaxYears int
	Score    float64
}

// RecencySchedule is a step function from years-since-last-spawn to a score
// in [0, 1]. Years beyond the last step score Floor.
type RecencySchedule struct {
	Steps []RecencyStep
	Floor float64
}

// DefaultRecencySchedule is the steeper of the two historical schedules:
// 1.0 at 0 years, 0.8 at 1, 0.5 at 2, 0.4 for 3–5, 0.2 beyond. The 0.9
// variant was not adopted; the two are never blended.
var DefaultRecencySchedule = RecencySchedule{
	Steps: []RecencyStep{
		{MaxYears: 0, Score: 1.0},
		{MaxYears: 1, Score: 0.8},
		{MaxYears: 2, Score: 0.5},
		{MaxYears: 5, Score: 0.4},
	},
	Floor: 0.2,
}

// Score evaluates the step function for a staleness in years.
func (s RecencySchedule) Score(years int) float64 {
	for _, step := range s.Steps {
		if years <= step.MaxYears {
			return step.Score
		}
	}
	return s.Floor
}

// Validate checks the schedule is non-empty, strictly ascending in years,
// and scores (including the floor) lie in [0, 1].
func (s RecencySchedule) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("recency schedule has no steps")
	}
	prev := -1
	for _, step := range s.Steps {
		if step.MaxYears <= prev {
			return fmt.Errorf("recency schedule years must ascend, got %d after %d", step.MaxYears, prev)
		}
		if step.Score < 0 || step.Score > 1 {
			return fmt.Errorf("recency score %g outside [0, 1]", step.Score)
		}
		prev = step.MaxYears
	}
	if s.Floor < 0 || s.Floor > 1 {
		return fmt.Errorf("recency floor %g outside [0, 1]", s.Floor)
	}
	return nil
}

// String renders the schedule in the parseable "0:1,1:0.8,...,floor:0.2" form.
func (s RecencySchedule) String() string {
	parts := make([]string, 0, len(s.Steps)+1)
	for _, step := range s.Steps {
		parts = append(parts, fmt.Sprintf("%d:%g", step.MaxYears, step.Score))
	}
	parts = append(parts, fmt.Sprintf("floor:%g", s.Floor))
	return strings.Join(parts, ",")
}

// ParseRecencySchedule parses "0:1.0,1:0.8,2:0.5,5:0.4,floor:0.2". Steps may
// appear in any order; the floor entry is required.
func ParseRecencySchedule(s string) (RecencySchedule, error) {
	var sched RecencySchedule
	floorSeen := false
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return RecencySchedule{}, fmt.Errorf("recency schedule entry %q: want years:score", part)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return RecencySchedule{}, fmt.Errorf("recency schedule entry %q: %w", part, err)
		}
		if strings.TrimSpace(key) == "floor" {
			sched.Floor = score
			floorSeen = true
			continue
		}
		years, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return RecencySchedule{}, fmt.Errorf("recency schedule entry %q: %w", part, err)
		}
		sched.Steps = append(sched.Steps, RecencyStep{MaxYears: years, Score: score})
	}
	if !floorSeen {
		return RecencySchedule{}, errors.New("recency schedule missing floor entry")
	}
	sort.Slice(sched.Steps, func(i, j int) bool { return sched.Steps[i].MaxYears < sched.Steps[j].MaxYears })
	if err := sched.Validate(); err != nil {
		return RecencySchedule{}, err
	}
	return sched, nil
}

// ForecastParams are the named constants of a forecast run.
type ForecastParams struct {
	TargetYear    int
	WindowYears   int
	Weights       Weights
	Recency       RecencySchedule
	LogSDFallback float64
}

// Validate checks the parameter set is usable.
func (p ForecastParams) Validate() error {
	if p.TargetYear <= 0 {
		return errors.New("target year must be positive")
	}
	if p.WindowYears <= 0 {
		return errors.New("window years must be positive")
	}
	if p.LogSDFallback <= 0 {
		return errors.New("log SD fallback must be positive")
	}
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	return p.Recency.Validate()
}

// Forecast derives the target-year prediction for one surviving summary.
// Pure: the same summary and params always produce the same prediction, with
// no clock or other ambient input.
//
// Timing and magnitude point estimates are the historical means. Timing
// bounds are mean ± 1.96·SD clamped to [1, 365]. Magnitude bounds are
// mean ± 1.96·SD with the lower bound clamped to ≥ 0; a zero SD falls back
// to a log-scale interval exp(ln(mean+1) ± 1.96·s) − 1 with s the log-scale
// SD or, when that too is degenerate, LogSDFallback.
func Forecast(sum LocationSummary, p ForecastParams) Prediction {
	pred := Prediction{
		LocationCode: sum.LocationCode,
		LocationName: sum.LocationName,
		Geo:          sum.Geo,
		TargetYear:   p.TargetYear,

		MeasuredEventCount: sum.MeasuredEventCount,
		AvgBiomass:         sum.AvgBiomass,
		MaxBiomass:         sum.MaxBiomass,
		AvgStartDOY:        sum.AvgStartDOY,
		SDStartDOY:         sum.SDStartDOY,
		MostRecentYear:     sum.MostRecentYear,
	}

	pred.PredictedDOY = sum.AvgStartDOY
	pred.TimingCI95 = Interval{
		Lower: clampRange(sum.AvgStartDOY-z95*sum.SDStartDOY, 1, 365),
		Upper: clampRange(sum.AvgStartDOY+z95*sum.SDStartDOY, 1, 365),
	}
	pred.PredictedDate = DateFromDOY(p.TargetYear, pred.PredictedDOY)
	pred.EarliestDate = DateFromDOY(p.TargetYear, pred.TimingCI95.Lower)
	pred.LatestDate = DateFromDOY(p.TargetYear, pred.TimingCI95.Upper)

	pred.PredictedBiomass = sum.AvgBiomass
	pred.BiomassCI95 = biomassInterval(sum, p.LogSDFallback)

	frequency := float64(sum.MeasuredEventCount) / float64(p.WindowYears)
	recency := p.Recency.Score(sum.YearsSinceLastSpawn)
	// The raw consistency term goes negative when SD exceeds mean+1; clamp it
	// so the composite stays a probability.
	consistency := clamp01(1 - sum.SDBiomass/(sum.AvgBiomass+1))

	pred.SpawnProbability = clamp01(
		p.Weights.Frequency*frequency +
			p.Weights.Recency*recency +
			p.Weights.Consistency*consistency,
	)

	return pred
}

// biomassInterval computes the 95% magnitude interval with the degenerate-SD
// fallback described on Forecast.
func biomassInterval(sum LocationSummary, logSDFallback float64) Interval {
	if sum.SDBiomass > 0 {
		return Interval{
			Lower: math.Max(0, sum.AvgBiomass-z95*sum.SDBiomass),
			Upper: sum.AvgBiomass + z95*sum.SDBiomass,
		}
	}
	s := sum.SDLogBiomass
	if !(s > 0) { // zero or NaN
		s = logSDFallback
	}
	center := math.Log(sum.AvgBiomass + 1)
	return Interval{
		Lower: math.Max(0, math.Exp(center-z95*s)-1),
		Upper: math.Exp(center+z95*s) - 1,
	}
}

// DateFromDOY converts a (possibly fractional) day-of-year to a calendar date
// in the given year: January 1 plus DOY−1 days, DOY rounded to nearest.
func DateFromDOY(year int, doy float64) time.Time {
	days := int(math.Round(doy)) - 1
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
