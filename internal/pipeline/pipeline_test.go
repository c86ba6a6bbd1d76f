package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
	"github.com/JTDingwall/herringspawnprediction/internal/observability"
	"github.com/JTDingwall/herringspawnprediction/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	rows []domain.RawSurveyRecord
	err  error
}

func (m *mockSource) ReadAll(_ context.Context) ([]domain.RawSurveyRecord, error) {
	return m.rows, m.err
}

type mockSink struct {
	written [][]domain.Prediction
	err     error
}

func (m *mockSink) WriteAll(_ context.Context, preds []domain.Prediction) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, preds)
	return nil
}

// --- helpers ---

// rawRecord builds a valid survey row for the given location and year.
func rawRecord(code string, year, doy int, biomass float64) domain.RawSurveyRecord {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	return domain.RawSurveyRecord{
		LocationCode: code,
		LocationName: "Bay " + code,
		Latitude:     "48.90000",
		Longitude:    "-125.30000",
		StartDate:    start.Format("2006-01-02"),
		Year:         fmt.Sprintf("%d", year),
		Understory:   fmt.Sprintf("%g", biomass),
	}
}

func testParams() domain.ForecastParams {
	return domain.ForecastParams{
		TargetYear:    2025,
		WindowYears:   10,
		Weights:       domain.DefaultWeights,
		Recency:       domain.DefaultRecencySchedule,
		LogSDFallback: domain.DefaultLogSDFallback,
	}
}

func newPipeline(source pipeline.RecordSource, sinks ...pipeline.PredictionSink) *pipeline.Pipeline {
	return pipeline.New(source, sinks, nil, slog.Default(), observability.NewMetricsForTesting(),
		domain.WindowEndingBefore(2025, 10), testParams(), domain.DefaultMinMeasuredEvents)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	source := &mockSource{rows: []domain.RawSurveyRecord{
		rawRecord("B", 2022, 70, 10),
		rawRecord("B", 2023, 80, 20),
		rawRecord("A", 2021, 60, 5),
		rawRecord("A", 2024, 65, 15),
	}}
	sink := &mockSink{}
	p := newPipeline(source, sink)

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, report.RowsRead)
	assert.Equal(t, 4, report.RowsRetained)
	assert.Empty(t, report.RowsDropped)
	assert.Equal(t, 2, report.LocationsConsidered)
	assert.Equal(t, 2, report.LocationsRetained)
	assert.Equal(t, 2, report.LocationsForecast)
	assert.False(t, report.GeneratedAt.IsZero(), "run timestamp lives on the report")

	require.Len(t, sink.written, 1)
	preds := sink.written[0]
	require.Len(t, preds, 2)
	assert.Equal(t, "A", preds[0].LocationCode, "output sorted by location code")
	assert.Equal(t, "B", preds[1].LocationCode)
	assert.Equal(t, 2025, preds[0].TargetYear)

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, preds, p.Latest())
}

// TestPipeline_Run_Deterministic runs the pipeline twice on identical rows
// with the real clock. The prediction sets must be bit-identical: the only
// permitted wall-clock dependency of a run is the report's own timestamp.
func TestPipeline_Run_Deterministic(t *testing.T) {
	rows := []domain.RawSurveyRecord{
		rawRecord("C", 2020, 88, 3),
		rawRecord("A", 2022, 70, 10),
		rawRecord("B", 2023, 80, 20),
		rawRecord("A", 2023, 72, 12),
		rawRecord("B", 2021, 78, 18),
		rawRecord("C", 2024, 90, 7),
	}

	sink1, sink2 := &mockSink{}, &mockSink{}
	_, err := newPipeline(&mockSource{rows: rows}, sink1).Run(context.Background())
	require.NoError(t, err)
	_, err = newPipeline(&mockSource{rows: rows}, sink2).Run(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(sink1.written, sink2.written); diff != "" {
		t.Fatalf("repeated runs differ (-first +second):\n%s", diff)
	}
}

func TestPipeline_Run_EmptyInput(t *testing.T) {
	p := newPipeline(&mockSource{})

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no survey rows")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SourceError(t *testing.T) {
	p := newPipeline(&mockSource{err: errors.New("disk gone")})

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read survey rows")
}

func TestPipeline_Run_AllRowsDefective(t *testing.T) {
	bad := rawRecord("A", 2022, 70, 10)
	bad.StartDate = "not-a-date"
	p := newPipeline(&mockSource{rows: []domain.RawSurveyRecord{bad}})

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable survey rows")
}

func TestPipeline_Run_CountsDropsByReason(t *testing.T) {
	noDate := rawRecord("A", 2022, 70, 10)
	noDate.StartDate = ""
	noCoords := rawRecord("A", 2022, 70, 10)
	noCoords.Latitude = ""

	source := &mockSource{rows: []domain.RawSurveyRecord{
		rawRecord("A", 2022, 70, 10),
		rawRecord("A", 2023, 72, 12),
		noDate,
		noCoords,
		rawRecord("A", 2012, 70, 8), // before the window
		rawRecord("A", 2025, 70, 8), // target year itself
	}}
	sink := &mockSink{}
	p := newPipeline(source, sink)

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 6, report.RowsRead)
	assert.Equal(t, 2, report.RowsRetained)
	assert.Equal(t, map[string]int{
		observability.ReasonBadDate:       1,
		observability.ReasonMissingCoords: 1,
		observability.ReasonOutsideWindow: 2,
	}, report.RowsDropped)
}

func TestPipeline_Run_FiltersInsufficientLocations(t *testing.T) {
	source := &mockSource{rows: []domain.RawSurveyRecord{
		// SUFFICIENT: two measured events.
		rawRecord("SUFFICIENT", 2022, 70, 10),
		rawRecord("SUFFICIENT", 2023, 72, 12),
		// SINGLE: one measured event — summarized but not forecast.
		rawRecord("SINGLE", 2023, 80, 5),
		// ZEROES: observed spawning, never surveyed for magnitude.
		rawRecord("ZEROES", 2022, 75, 0),
		rawRecord("ZEROES", 2023, 76, 0),
	}}
	sink := &mockSink{}
	p := newPipeline(source, sink)

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.LocationsConsidered)
	assert.Equal(t, 2, report.LocationsRetained, "all-zero location filtered")
	assert.Equal(t, 1, report.LocationsForecast, "single-measurement location filtered")

	require.Len(t, sink.written, 1)
	require.Len(t, sink.written[0], 1)
	assert.Equal(t, "SUFFICIENT", sink.written[0][0].LocationCode)
}

func TestPipeline_Run_SinkError(t *testing.T) {
	source := &mockSource{rows: []domain.RawSurveyRecord{
		rawRecord("A", 2022, 70, 10),
		rawRecord("A", 2023, 72, 12),
	}}
	p := newPipeline(source, &mockSink{err: errors.New("broker down")})

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write predictions")
	assert.Error(t, p.CheckReadiness(context.Background()), "failed run never reports ready")
}

func TestPipeline_Run_MultipleSinks(t *testing.T) {
	source := &mockSource{rows: []domain.RawSurveyRecord{
		rawRecord("A", 2022, 70, 10),
		rawRecord("A", 2023, 72, 12),
	}}
	sink1, sink2 := &mockSink{}, &mockSink{}
	p := newPipeline(source, sink1, sink2)

	_, err := p.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, sink1.written, 1)
	require.Len(t, sink2.written, 1)
	assert.Equal(t, sink1.written, sink2.written)
}

func TestPipeline_Run_NoSinks(t *testing.T) {
	source := &mockSource{rows: []domain.RawSurveyRecord{
		rawRecord("A", 2022, 70, 10),
		rawRecord("A", 2023, 72, 12),
	}}
	p := newPipeline(source)

	_, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, p.Latest(), 1)
}
