// Package domain models Pacific herring spawn survey data and the per-location
// forecast derived from it.
//
// # Data Source
//
// Records originate from the DFO Pacific herring spawn index, one row per
// surveyed spawn event. Dive and surface surveys quantify deposition with
// three sub-indices: understory, Macrocystis (giant kelp), and surface cover.
// The combined biomass index for an event is the sum of the three, each
// treated as zero when the sub-survey was not performed.
//
// A zero biomass index does not mean "no spawn": it records a spawn that was
// observed but never surveyed for magnitude. Locations where every event is
// unmeasured are therefore excluded from forecasting — there is nothing to
// estimate a magnitude or probability from — while unmeasured events at
// otherwise-measured locations still contribute to timing statistics, since
// the spawn date is observable without a dive survey.
//
// # Conventions
//
//	Dates:        "2006-01-02" (preferred) or "2006/01/02". Rows whose start
//	              date cannot be parsed are dropped and counted, never fatal.
//	Coordinates:  decimal degrees WGS-84; rows missing either coordinate are
//	              dropped and counted.
//	Sub-indices:  lenient numeric coercion; blanks, sentinels, and negative
//	              values become 0 (the row is kept).
//	DOY:          1-based day of year of the start date, 1–366.
//
// # Forecast
//
// The forecast for a target year is a pure function of a LocationSummary:
// timing and magnitude point estimates are the historical means (no trend
// extrapolation, kept deliberately interpretable), each with a mean ± 1.96·SD
// normal-approximation interval, and the spawn probability is a weighted
// composite of frequency, recency, and consistency scores clamped to [0, 1].
// The intervals are heuristic, not fitted-model prediction intervals.
package domain
