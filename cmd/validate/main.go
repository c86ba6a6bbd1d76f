// Command validate performs end-to-end integrity checks on a forecast run:
// it reloads the source survey CSV and the published GeoJSON prediction set,
// verifies every output invariant, and recomputes the forecast from the raw
// rows to confirm the published numbers.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input data/spawn_surveys.csv \
//	  -geojson predictions.geojson \
//	  -target-year 2025
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	geom "github.com/twpayne/go-geom"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/JTDingwall/herringspawnprediction/internal/adapter/csvfile"
	"github.com/JTDingwall/herringspawnprediction/internal/adapter/geojson"
	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	input := flag.String("input", "", "path to the source survey CSV")
	geojsonPath := flag.String("geojson", "", "path to the published prediction GeoJSON")
	targetYear := flag.Int("target-year", 0, "forecast target year (default: next calendar year)")
	windowYears := flag.Int("window-years", domain.DefaultWindowYears, "analysis window size in years")
	minMeasured := flag.Int("min-measured", domain.DefaultMinMeasuredEvents, "minimum measured events per location")
	flag.Parse()

	if *input == "" || *geojsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *targetYear == 0 {
		*targetYear = domain.DefaultTargetYear()
	}

	if code := run(*input, *geojsonPath, *targetYear, *windowYears, *minMeasured); code != 0 {
		os.Exit(code)
	}
}

func run(inputPath, geojsonPath string, targetYear, windowYears, minMeasured int) int {
	fmt.Println("=== Spawn Forecast Integrity Validation ===")
	fmt.Println()

	fc, err := geojson.Load(geojsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load predictions: %v\n", err)
		return 1
	}

	rows, err := csvfile.NewSource(inputPath).ReadAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load survey csv: %v\n", err)
		return 1
	}

	expected := recompute(rows, targetYear, windowYears, minMeasured)

	phases := []*phase{
		validateOutputContract(fc),
		validateSufficiency(fc, expected, minMeasured),
		validateRecomputation(fc, expected),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d survey rows, %d published predictions, %d recomputed\n",
		len(rows), len(fc.Features), len(expected))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// recompute re-runs the full forecast transformation on the raw rows.
func recompute(rows []domain.RawSurveyRecord, targetYear, windowYears, minMeasured int) map[string]domain.Prediction {
	window := domain.WindowEndingBefore(targetYear, windowYears)

	var events []domain.SpawnEvent
	for _, row := range rows {
		e, err := domain.NormalizeRecord(row)
		if err != nil || !window.Contains(e.Year) {
			continue
		}
		events = append(events, e)
	}

	retained := domain.FilterMeasuredLocations(domain.GroupByLocation(events))
	summaries := make(map[string]domain.LocationSummary, len(retained))
	for code, evs := range retained {
		sum, err := domain.SummarizeLocation(evs, targetYear)
		if err != nil {
			continue
		}
		summaries[code] = sum
	}
	sufficient := domain.FilterSufficient(summaries, minMeasured)

	params := domain.ForecastParams{
		TargetYear:    targetYear,
		WindowYears:   windowYears,
		Weights:       domain.DefaultWeights,
		Recency:       domain.DefaultRecencySchedule,
		LogSDFallback: domain.DefaultLogSDFallback,
	}

	preds := make(map[string]domain.Prediction, len(sufficient))
	for code, sum := range sufficient {
		preds[code] = domain.Forecast(sum, params)
	}
	return preds
}

// ── Phase 1: Output Contract ──
// Every published feature satisfies the numeric invariants on its own.

func validateOutputContract(fc *geomjson.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Output Contract (invariants)"}

	seen := map[string]bool{}
	for i, f := range fc.Features {
		code := propString(f, "location_code")
		if code == "" {
			p.errorf("feature %d: missing location_code", i)
			continue
		}
		if seen[code] {
			p.errorf("feature %d: duplicate location_code %q", i, code)
		}
		seen[code] = true

		checkFeatureContract(p, code, f)
	}
	return p
}

func checkFeatureContract(p *phase, code string, f *geomjson.Feature) {
	if _, ok := f.Geometry.(*geom.Point); !ok {
		p.errorf("%s: geometry is %T, want Point", code, f.Geometry)
	}

	prob := propFloat(f, "spawn_probability")
	if prob < 0 || prob > 1 {
		p.errorf("%s: spawn_probability %g outside [0, 1]", code, prob)
	}

	lo, hi := propFloat(f, "timing_ci95_lower"), propFloat(f, "timing_ci95_upper")
	doy := propFloat(f, "predicted_doy")
	if lo < 1 || hi > 365 {
		p.errorf("%s: timing CI [%g, %g] outside [1, 365]", code, lo, hi)
	}
	if lo > hi {
		p.errorf("%s: timing CI lower %g > upper %g", code, lo, hi)
	}
	if doy < lo || doy > hi {
		p.errorf("%s: predicted_doy %g outside its CI [%g, %g]", code, doy, lo, hi)
	}

	bLo, bHi := propFloat(f, "biomass_ci95_lower"), propFloat(f, "biomass_ci95_upper")
	if bLo < 0 {
		p.errorf("%s: biomass CI lower %g is negative", code, bLo)
	}
	if bLo > bHi {
		p.errorf("%s: biomass CI lower %g > upper %g", code, bLo, bHi)
	}
	if bLo == bHi {
		p.errorf("%s: biomass CI is a point estimate [%g, %g]", code, bLo, bHi)
	}

	if n := propFloat(f, "measured_event_count"); n < domain.DefaultMinMeasuredEvents {
		p.errorf("%s: published with %g measured events", code, n)
	}
	if propString(f, "popup") == "" {
		p.errorf("%s: missing popup text", code)
	}
}

// ── Phase 2: Sufficiency ──
// The published set contains exactly the locations that survive filtering.

func validateSufficiency(fc *geomjson.FeatureCollection, expected map[string]domain.Prediction, minMeasured int) *phase {
	p := &phase{name: "Phase 2: Sufficiency (location filtering)"}

	published := map[string]bool{}
	for _, f := range fc.Features {
		published[propString(f, "location_code")] = true
	}

	for code := range published {
		if _, ok := expected[code]; !ok {
			p.errorf("location %q published but does not survive recomputation (min %d measured events)", code, minMeasured)
		}
	}
	for code := range expected {
		if !published[code] {
			p.errorf("location %q survives filtering but is not published", code)
		}
	}
	return p
}

// ── Phase 3: Recomputation ──
// Published numbers match an independent re-run of the forecast.

func validateRecomputation(fc *geomjson.FeatureCollection, expected map[string]domain.Prediction) *phase {
	p := &phase{name: "Phase 3: Recomputation (published vs fresh)"}

	for _, f := range fc.Features {
		code := propString(f, "location_code")
		want, ok := expected[code]
		if !ok {
			continue // reported by phase 2
		}

		checkFloat(p, code, "predicted_doy", propFloat(f, "predicted_doy"), want.PredictedDOY)
		checkFloat(p, code, "timing_ci95_lower", propFloat(f, "timing_ci95_lower"), want.TimingCI95.Lower)
		checkFloat(p, code, "timing_ci95_upper", propFloat(f, "timing_ci95_upper"), want.TimingCI95.Upper)
		checkFloat(p, code, "predicted_biomass", propFloat(f, "predicted_biomass"), want.PredictedBiomass)
		checkFloat(p, code, "biomass_ci95_lower", propFloat(f, "biomass_ci95_lower"), want.BiomassCI95.Lower)
		checkFloat(p, code, "biomass_ci95_upper", propFloat(f, "biomass_ci95_upper"), want.BiomassCI95.Upper)
		checkFloat(p, code, "spawn_probability", propFloat(f, "spawn_probability"), want.SpawnProbability)
		checkFloat(p, code, "measured_event_count", propFloat(f, "measured_event_count"), float64(want.MeasuredEventCount))
		checkFloat(p, code, "most_recent_year", propFloat(f, "most_recent_year"), float64(want.MostRecentYear))

		if got := propString(f, "predicted_date"); got != want.PredictedDate.Format("2006-01-02") {
			p.errorf("%s: predicted_date: expected %s, got %s", code, want.PredictedDate.Format("2006-01-02"), got)
		}
	}
	return p
}

// ── Helpers ──

func checkFloat(p *phase, code, field string, got, want float64) {
	if math.Abs(got-want) > 1e-6 {
		p.errorf("%s: %s: expected %g, got %g", code, field, want, got)
	}
}

func propFloat(f *geomjson.Feature, key string) float64 {
	switch v := f.Properties[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return math.NaN()
}

func propString(f *geomjson.Feature, key string) string {
	s, _ := f.Properties[key].(string)
	return s
}
