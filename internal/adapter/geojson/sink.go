// Package geojson writes the prediction set as a GeoJSON FeatureCollection
// for the interactive map layer.
package geojson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	geom "github.com/twpayne/go-geom"
	geomjson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

// Sink writes predictions to a GeoJSON file.
// It implements pipeline.PredictionSink.
type Sink struct {
	path string
}

// NewSink creates a Sink writing to the given path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// WriteAll renders one Point feature per prediction. Properties carry the
// full output contract plus the formatted popup string — popup formatting is
// this boundary's responsibility, not the pipeline's.
func (s *Sink) WriteAll(_ context.Context, preds []domain.Prediction) error {
	fc := geomjson.FeatureCollection{Features: make([]*geomjson.Feature, 0, len(preds))}
	for i := range preds {
		fc.Features = append(fc.Features, toFeature(&preds[i]))
	}

	data, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

func toFeature(p *domain.Prediction) *geomjson.Feature {
	return &geomjson.Feature{
		ID:       p.LocationCode,
		Geometry: geom.NewPointFlat(geom.XY, []float64{p.Geo.Lon, p.Geo.Lat}),
		Properties: map[string]interface{}{
			"location_code":        p.LocationCode,
			"location_name":        p.LocationName,
			"target_year":          p.TargetYear,
			"predicted_doy":        p.PredictedDOY,
			"timing_ci95_lower":    p.TimingCI95.Lower,
			"timing_ci95_upper":    p.TimingCI95.Upper,
			"predicted_date":       p.PredictedDate.Format("2006-01-02"),
			"earliest_date":        p.EarliestDate.Format("2006-01-02"),
			"latest_date":          p.LatestDate.Format("2006-01-02"),
			"predicted_biomass":    p.PredictedBiomass,
			"biomass_ci95_lower":   p.BiomassCI95.Lower,
			"biomass_ci95_upper":   p.BiomassCI95.Upper,
			"spawn_probability":    p.SpawnProbability,
			"measured_event_count": p.MeasuredEventCount,
			"avg_biomass":          p.AvgBiomass,
			"max_biomass":          p.MaxBiomass,
			"avg_start_doy":        p.AvgStartDOY,
			"sd_start_doy":         p.SDStartDOY,
			"most_recent_year":     p.MostRecentYear,
			"popup":                PopupText(p),
		},
	}
}

// PopupText formats the human-readable map popup for one prediction.
func PopupText(p *domain.Prediction) string {
	name := p.LocationName
	if name == "" {
		name = p.LocationCode
	}
	return fmt.Sprintf(
		"%s — %.0f%% spawn probability in %d. Predicted %s (window %s to %s). "+
			"Expected biomass index %.1f (95%% CI %.1f–%.1f). %d measured surveys, last spawn %d.",
		name,
		p.SpawnProbability*100,
		p.TargetYear,
		p.PredictedDate.Format("Jan 2"),
		p.EarliestDate.Format("Jan 2"),
		p.LatestDate.Format("Jan 2"),
		p.PredictedBiomass,
		p.BiomassCI95.Lower,
		p.BiomassCI95.Upper,
		p.MeasuredEventCount,
		p.MostRecentYear,
	)
}

// Load reads a previously written prediction FeatureCollection, used by the
// validate command.
func Load(path string) (*geomjson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	var fc geomjson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return &fc, nil
}
