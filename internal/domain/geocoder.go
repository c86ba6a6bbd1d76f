package domain

import (
	"context"
	"log/slog"
)

// GeocodingResult contains place data returned by a reverse-geocoding provider.
type GeocodingResult struct {
	PlaceName        string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves coordinates to place details for display.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// EnrichDisplayNames fills empty location names on summaries by reverse
// geocoding their coordinates. Failures degrade gracefully: the summary keeps
// its empty name and the pipeline continues. A nil geocoder is a no-op.
func EnrichDisplayNames(ctx context.Context, summaries map[string]LocationSummary, geocoder Geocoder, logger *slog.Logger) {
	if geocoder == nil {
		return
	}
	for code, sum := range summaries {
		if sum.LocationName != "" {
			continue
		}
		result, err := geocoder.ReverseGeocode(ctx, sum.Geo.Lat, sum.Geo.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"location_code", code,
				"lat", sum.Geo.Lat,
				"lon", sum.Geo.Lon,
				"error", err,
			)
			continue
		}
		if result.PlaceName == "" {
			continue
		}
		sum.LocationName = result.PlaceName
		summaries[code] = sum
	}
}
