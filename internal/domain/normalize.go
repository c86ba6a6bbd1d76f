package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Drop reasons returned by NormalizeRecord. The pipeline counts each reason
// separately so excluded rows stay auditable.
var (
	ErrMissingCoordinates = errors.New("missing or unparseable coordinates")
	ErrBadStartDate       = errors.New("missing or unparseable start date")
)

// dateLayouts lists the accepted survey date formats, most common first.
var dateLayouts = []string{"2006-01-02", "2006/01/02"}

// Window is an inclusive range of survey years.
type Window struct {
	StartYear int
	EndYear   int
}

// Contains reports whether year falls inside the window.
func (w Window) Contains(year int) bool {
	return year >= w.StartYear && year <= w.EndYear
}

// Years returns the window size in years.
func (w Window) Years() int {
	return w.EndYear - w.StartYear + 1
}

// WindowEndingBefore returns the default analysis window for a target year:
// the windowYears complete years preceding it.
func WindowEndingBefore(targetYear, windowYears int) Window {
	return Window{StartYear: targetYear - windowYears, EndYear: targetYear - 1}
}

// NormalizeRecord coerces a raw survey row into a SpawnEvent.
//
// Coordinates and the start date are hard requirements: rows missing either
// are rejected with ErrMissingCoordinates or ErrBadStartDate. Everything else
// is coerced leniently — the three biomass sub-indices become 0 when blank or
// unparseable, the end date becomes the zero time, and a missing year column
// falls back to the start date's year.
func NormalizeRecord(rec RawSurveyRecord) (SpawnEvent, error) {
	lat, latOK := parseFloat(rec.Latitude)
	lon, lonOK := parseFloat(rec.Longitude)
	if !latOK || !lonOK {
		return SpawnEvent{}, fmt.Errorf("location %q: %w", rec.LocationCode, ErrMissingCoordinates)
	}

	start, ok := parseDate(rec.StartDate)
	if !ok {
		return SpawnEvent{}, fmt.Errorf("location %q: %w", rec.LocationCode, ErrBadStartDate)
	}
	end, _ := parseDate(rec.EndDate)

	year := start.Year()
	if y, ok := parseInt(rec.Year); ok {
		year = y
	}

	biomass := parseIndexOrZero(rec.Understory) +
		parseIndexOrZero(rec.Macrocystis) +
		parseIndexOrZero(rec.SurfaceCover)

	return SpawnEvent{
		LocationCode: strings.TrimSpace(rec.LocationCode),
		LocationName: strings.TrimSpace(rec.LocationName),
		Geo:          Geo{Lat: lat, Lon: lon},
		StartDate:    start,
		EndDate:      end,
		StartDOY:     start.YearDay(),
		Year:         year,
		BiomassIndex: biomass,
	}, nil
}

// parseDate tries each accepted layout in turn.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseIndexOrZero coerces a biomass sub-index, returning 0 for blanks,
// unparseable values, and negatives. An absent sub-survey never drops the row.
func parseIndexOrZero(s string) float64 {
	v, ok := parseFloat(s)
	if !ok || v < 0 {
		return 0
	}
	return v
}
