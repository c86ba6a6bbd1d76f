package domain

import "time"

// RawSurveyRecord represents one row of the Pacific herring spawn survey
// export. All fields are strings; upstream spreadsheets mix numeric formats,
// blanks, and sentinel values, so typing happens during normalization.
type RawSurveyRecord struct {
	LocationCode string `csv:"location_code" json:"location_code"`
	LocationName string `csv:"location_name" json:"location_name"`
	Latitude     string `csv:"latitude" json:"latitude"`
	Longitude    string `csv:"longitude" json:"longitude"`
	StartDate    string `csv:"start_date" json:"start_date"`
	EndDate      string `csv:"end_date" json:"end_date"`
	Year         string `csv:"year" json:"year"`
	Understory   string `csv:"understory_sbi" json:"understory_sbi"`
	Macrocystis  string `csv:"macrocystis_sbi" json:"macrocystis_sbi"`
	SurfaceCover string `csv:"surface_cover_sbi" json:"surface_cover_sbi"`
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SpawnEvent is the typed representation of one survey record after
// normalization. Every event in the working set has valid coordinates and a
// parsed start date; BiomassIndex is never negative.
type SpawnEvent struct {
	LocationCode string    `json:"location_code"`
	LocationName string    `json:"location_name"`
	Geo          Geo       `json:"geo"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date,omitzero"` // zero when absent or unparseable
	StartDOY     int       `json:"start_doy"`         // 1-based day of year of StartDate
	Year         int       `json:"year"`
	BiomassIndex float64   `json:"biomass_index"` // sum of the three survey sub-indices
}

// Measured reports whether the event carries a quantified biomass reading.
// Zero-index events record spawning that was observed but not surveyed for
// magnitude.
func (e SpawnEvent) Measured() bool {
	return e.BiomassIndex > 0
}

// LocationSummary aggregates the retained history of a single spawn location.
//
// Biomass moments are computed over measured events only; timing moments are
// computed over all retained events at the location. SD fields are NaN when
// fewer than two samples exist (an undefined standard deviation is never
// reported as zero); the sufficiency filter removes such summaries before
// forecasting.
type LocationSummary struct {
	LocationCode string `json:"location_code"`
	LocationName string `json:"location_name"`
	Geo          Geo    `json:"geo"`

	TotalEventCount    int `json:"total_event_count"`
	MeasuredEventCount int `json:"measured_event_count"`
	YearsObserved      int `json:"years_observed"`

	AvgBiomass    float64 `json:"avg_biomass"`
	SDBiomass     float64 `json:"sd_biomass"`
	SDLogBiomass  float64 `json:"sd_log_biomass"` // sample SD of log(biomass+1)
	MaxBiomass    float64 `json:"max_biomass"`
	MedianBiomass float64 `json:"median_biomass"`

	AvgStartDOY float64 `json:"avg_start_doy"`
	SDStartDOY  float64 `json:"sd_start_doy"`
	EarliestDOY int     `json:"earliest_doy"`
	LatestDOY   int     `json:"latest_doy"`

	MostRecentYear      int `json:"most_recent_year"`
	YearsSinceLastSpawn int `json:"years_since_last_spawn"`
}

// Interval is a closed numeric interval, used for 95% confidence bounds.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Prediction is the next-year forecast for one location, together with the
// historical summary fields the map layer displays. A pure function of the
// summary and the run parameters: reruns on identical input produce identical
// predictions. Run timestamps live on the run report and at the publishing
// boundary, never here.
type Prediction struct {
	LocationCode string `json:"location_code"`
	LocationName string `json:"location_name"`
	Geo          Geo    `json:"geo"`
	TargetYear   int    `json:"target_year"`

	PredictedDOY  float64   `json:"predicted_doy"`
	TimingCI95    Interval  `json:"timing_ci95"` // bounds clamped to [1, 365]
	PredictedDate time.Time `json:"predicted_date"`
	EarliestDate  time.Time `json:"earliest_date"`
	LatestDate    time.Time `json:"latest_date"`

	PredictedBiomass float64  `json:"predicted_biomass"`
	BiomassCI95      Interval `json:"biomass_ci95"` // lower bound clamped to >= 0

	SpawnProbability float64 `json:"spawn_probability"` // clamped to [0, 1]

	// Historical context for display.
	MeasuredEventCount int     `json:"measured_event_count"`
	AvgBiomass         float64 `json:"avg_biomass"`
	MaxBiomass         float64 `json:"max_biomass"`
	AvgStartDOY        float64 `json:"avg_start_doy"`
	SDStartDOY         float64 `json:"sd_start_doy"`
	MostRecentYear     int     `json:"most_recent_year"`
}
