// Package csvfile reads herring spawn survey records from a CSV export.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

// requiredColumns is the minimum input contract; a file missing any of these
// is a structural failure, not a row-level defect.
var requiredColumns = []string{
	"location_code", "location_name", "latitude", "longitude",
	"start_date", "end_date", "year",
	"understory_sbi", "macrocystis_sbi", "surface_cover_sbi",
}

// Source reads all survey records from a CSV file.
// It implements pipeline.RecordSource.
type Source struct {
	path string
}

// NewSource creates a Source for the given CSV path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// ReadAll decodes the entire file. Field values stay untyped strings; the
// Normalizer owns all coercion.
func (s *Source) ReadAll(ctx context.Context) ([]domain.RawSurveyRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open survey csv: %w", err)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("survey csv %s is empty", s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read survey csv header: %w", err)
	}

	if err := checkColumns(dec.Header()); err != nil {
		return nil, fmt.Errorf("survey csv %s: %w", s.path, err)
	}

	var records []domain.RawSurveyRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec domain.RawSurveyRecord
		if err := dec.Decode(&rec); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode survey csv row: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns %v", missing)
	}
	return nil
}
