// Command genmock generates a deterministic synthetic spawn survey CSV for
// local runs and test fixtures. It pushes the generated rows through the
// actual domain transformation so the printed stats match real pipeline
// behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/spawn_surveys.csv \
//	  -locations 25 -start-year 2015 -end-year 2024 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the survey CSV fixture")
	locations := flag.Int("locations", 25, "number of spawn locations to generate")
	startYear := flag.Int("start-year", 2015, "first survey year")
	endYear := flag.Int("end-year", 2024, "last survey year")
	seed := flag.Int64("seed", 42, "PRNG seed for reproducible output")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *startYear > *endYear {
		return fmt.Errorf("-start-year %d is after -end-year %d", *startYear, *endYear)
	}

	rng := rand.New(rand.NewSource(*seed))
	records := generate(rng, *locations, *startYear, *endYear)

	data, err := csvutil.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	log.Printf("wrote %d survey rows for %d locations: %s", len(records), *locations, *out)

	printStats(records, *endYear+1, *endYear-*startYear+1)
	return nil
}

// generate produces survey rows with per-location habits: a characteristic
// spawn week, a biomass scale, and a chance of skipping or not surveying a
// given year. A few rows carry deliberate defects to exercise drop counting.
func generate(rng *rand.Rand, locations, startYear, endYear int) []domain.RawSurveyRecord {
	var records []domain.RawSurveyRecord
	for i := 0; i < locations; i++ {
		code := fmt.Sprintf("WCVI-%03d", i+1)
		lat := 48.3 + rng.Float64()*2.4
		lon := -125.9 + rng.Float64()*2.2
		meanDOY := 60 + rng.Intn(60) // late February through April
		scale := 5 + rng.Float64()*40
		skipChance := rng.Float64() * 0.4

		for year := startYear; year <= endYear; year++ {
			if rng.Float64() < skipChance {
				continue // no spawn observed this year
			}
			doy := meanDOY + rng.Intn(15) - 7
			start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).
				AddDate(0, 0, doy-1)
			end := start.AddDate(0, 0, 1+rng.Intn(5))

			rec := domain.RawSurveyRecord{
				LocationCode: code,
				LocationName: fmt.Sprintf("Mock Bay %d", i+1),
				Latitude:     fmt.Sprintf("%.5f", lat),
				Longitude:    fmt.Sprintf("%.5f", lon),
				StartDate:    start.Format("2006-01-02"),
				EndDate:      end.Format("2006-01-02"),
				Year:         fmt.Sprintf("%d", year),
			}

			// Roughly one in six events is observed but not dive-surveyed.
			if rng.Float64() > 1.0/6.0 {
				rec.Understory = fmt.Sprintf("%.2f", rng.Float64()*scale)
				rec.Macrocystis = fmt.Sprintf("%.2f", rng.Float64()*scale*0.5)
				rec.SurfaceCover = fmt.Sprintf("%.2f", rng.Float64()*scale*0.3)
			}
			records = append(records, rec)
		}
	}

	// Defective rows the normalizer must drop.
	records = append(records,
		domain.RawSurveyRecord{
			LocationCode: "BAD-001", LocationName: "No Coordinates",
			StartDate: fmt.Sprintf("%d-03-15", endYear), Year: fmt.Sprintf("%d", endYear),
			Understory: "3.0",
		},
		domain.RawSurveyRecord{
			LocationCode: "BAD-002", LocationName: "No Date",
			Latitude: "49.10000", Longitude: "-125.50000",
			Year: fmt.Sprintf("%d", endYear), Understory: "2.0",
		},
	)
	return records
}

// printStats runs the real transformation and prints the numbers test
// assertions care about.
func printStats(records []domain.RawSurveyRecord, targetYear, windowYears int) {
	var events []domain.SpawnEvent
	var dropped int
	for _, rec := range records {
		e, err := domain.NormalizeRecord(rec)
		if err != nil {
			dropped++
			continue
		}
		events = append(events, e)
	}

	groups := domain.GroupByLocation(events)
	retained := domain.FilterMeasuredLocations(groups)

	summaries := make(map[string]domain.LocationSummary, len(retained))
	for code, evs := range retained {
		sum, err := domain.SummarizeLocation(evs, targetYear)
		if err != nil {
			continue
		}
		summaries[code] = sum
	}
	sufficient := domain.FilterSufficient(summaries, domain.DefaultMinMeasuredEvents)

	params := domain.ForecastParams{
		TargetYear:    targetYear,
		WindowYears:   windowYears,
		Weights:       domain.DefaultWeights,
		Recency:       domain.DefaultRecencySchedule,
		LogSDFallback: domain.DefaultLogSDFallback,
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d total, %d dropped, %d normalized\n", len(records), dropped, len(events))
	fmt.Printf("Locations: %d considered, %d measured, %d sufficient\n",
		len(groups), len(retained), len(sufficient))

	var minProb, maxProb = 1.0, 0.0
	var maxBiomass float64
	for _, code := range domain.SortedCodes(sufficient) {
		pred := domain.Forecast(sufficient[code], params)
		minProb = math.Min(minProb, pred.SpawnProbability)
		maxProb = math.Max(maxProb, pred.SpawnProbability)
		maxBiomass = math.Max(maxBiomass, pred.PredictedBiomass)
	}
	fmt.Printf("Spawn probability range: %.4f – %.4f\n", minProb, maxProb)
	fmt.Printf("Max predicted biomass: %.2f\n", maxBiomass)

	// First sufficient location, for spot-check assertions.
	codes := domain.SortedCodes(sufficient)
	if len(codes) == 0 {
		return
	}
	pred := domain.Forecast(sufficient[codes[0]], params)
	fmt.Printf("\nFirst location (%s):\n", pred.LocationCode)
	fmt.Printf("  MeasuredEventCount: %d\n", pred.MeasuredEventCount)
	fmt.Printf("  PredictedDOY: %.2f (CI %.2f–%.2f)\n",
		pred.PredictedDOY, pred.TimingCI95.Lower, pred.TimingCI95.Upper)
	fmt.Printf("  PredictedDate: %s\n", pred.PredictedDate.Format("2006-01-02"))
	fmt.Printf("  PredictedBiomass: %.2f (CI %.2f–%.2f)\n",
		pred.PredictedBiomass, pred.BiomassCI95.Lower, pred.BiomassCI95.Upper)
	fmt.Printf("  SpawnProbability: %.4f\n", pred.SpawnProbability)
}
