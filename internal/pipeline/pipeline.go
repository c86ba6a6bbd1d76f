package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
	"github.com/JTDingwall/herringspawnprediction/internal/observability"
)

// RecordSource reads the complete raw survey record set.
type RecordSource interface {
	ReadAll(ctx context.Context) ([]domain.RawSurveyRecord, error)
}

// PredictionSink receives the complete prediction set for a run.
type PredictionSink interface {
	WriteAll(ctx context.Context, preds []domain.Prediction) error
}

// Report carries the audit counts of one forecast run, so silent data loss
// is always observable downstream.
type Report struct {
	TargetYear          int            `json:"target_year"`
	Window              domain.Window  `json:"window"`
	RowsRead            int            `json:"rows_read"`
	RowsDropped         map[string]int `json:"rows_dropped"`
	RowsRetained        int            `json:"rows_retained"`
	LocationsConsidered int            `json:"locations_considered"`
	LocationsRetained   int            `json:"locations_retained"`
	LocationsForecast   int            `json:"locations_forecast"`
	GeneratedAt         time.Time      `json:"generated_at"`
	Duration            time.Duration  `json:"duration"`
}

// Pipeline runs the batch transformation from raw survey rows to the
// per-location prediction set: normalize, filter, aggregate, forecast, sink.
type Pipeline struct {
	source      RecordSource
	sinks       []PredictionSink
	geocoder    domain.Geocoder
	logger      *slog.Logger
	metrics     *observability.Metrics
	window      domain.Window
	params      domain.ForecastParams
	minMeasured int

	ready  atomic.Bool
	mu     sync.RWMutex
	latest []domain.Prediction
}

// New creates a Pipeline. Pass a nil geocoder to disable display-name
// enrichment; sinks may be empty.
func New(source RecordSource, sinks []PredictionSink, geocoder domain.Geocoder,
	logger *slog.Logger, metrics *observability.Metrics,
	window domain.Window, params domain.ForecastParams, minMeasured int) *Pipeline {
	return &Pipeline{
		source:      source,
		sinks:       sinks,
		geocoder:    geocoder,
		logger:      logger,
		metrics:     metrics,
		window:      window,
		params:      params,
		minMeasured: minMeasured,
	}
}

// CheckReadiness returns nil once a forecast run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no forecast run has completed yet")
	}
	return nil
}

// Latest returns the prediction set of the most recent completed run.
func (p *Pipeline) Latest() []domain.Prediction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Run executes one complete forecast run. The computation is a deterministic
// pure function of (source rows, target year, parameters); predictions are
// emitted sorted by location code so repeated runs are bit-identical. The run
// timestamp and duration live on the Report only, never on the predictions.
//
// Row-level defects and insufficient-evidence locations are counted, not
// fatal. An empty input or an input that normalizes to nothing is a
// structural failure and returns an error.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{
		TargetYear:  p.params.TargetYear,
		Window:      p.window,
		RowsDropped: make(map[string]int),
	}

	rows, err := p.source.ReadAll(ctx)
	if err != nil {
		return report, fmt.Errorf("read survey rows: %w", err)
	}
	report.RowsRead = len(rows)
	p.metrics.RowsRead.Add(float64(len(rows)))
	if len(rows) == 0 {
		return report, errors.New("input contains no survey rows")
	}

	events := p.normalize(rows, &report)
	report.RowsRetained = len(events)
	if len(events) == 0 {
		return report, fmt.Errorf("no usable survey rows in window %d–%d (read %d, dropped %v)",
			p.window.StartYear, p.window.EndYear, report.RowsRead, report.RowsDropped)
	}

	groups := domain.GroupByLocation(events)
	report.LocationsConsidered = len(groups)
	p.metrics.LocationsConsidered.Set(float64(len(groups)))

	retained := domain.FilterMeasuredLocations(groups)
	report.LocationsRetained = len(retained)
	p.metrics.LocationsRetained.Set(float64(len(retained)))

	summaries, err := p.summarize(ctx, retained)
	if err != nil {
		return report, err
	}

	sufficient := domain.FilterSufficient(summaries, p.minMeasured)
	report.LocationsForecast = len(sufficient)
	p.metrics.LocationsForecast.Set(float64(len(sufficient)))

	domain.EnrichDisplayNames(ctx, sufficient, p.geocoder, p.logger)

	preds := make([]domain.Prediction, 0, len(sufficient))
	for _, code := range domain.SortedCodes(sufficient) {
		preds = append(preds, domain.Forecast(sufficient[code], p.params))
	}

	for _, sink := range p.sinks {
		if err := sink.WriteAll(ctx, preds); err != nil {
			return report, fmt.Errorf("write predictions: %w", err)
		}
	}

	p.mu.Lock()
	p.latest = preds
	p.mu.Unlock()
	p.ready.Store(true)

	report.GeneratedAt = domain.Now().UTC()
	report.Duration = time.Since(start)
	p.metrics.ForecastRuns.Inc()
	p.metrics.ForecastDuration.Observe(report.Duration.Seconds())

	p.logger.Info("forecast run complete",
		"target_year", report.TargetYear,
		"rows_read", report.RowsRead,
		"rows_retained", report.RowsRetained,
		"rows_dropped", report.RowsDropped,
		"locations_considered", report.LocationsConsidered,
		"locations_retained", report.LocationsRetained,
		"locations_forecast", report.LocationsForecast,
		"duration", report.Duration,
	)
	return report, nil
}

// normalize coerces raw rows to events, restricting to the analysis window
// and counting every exclusion by reason.
func (p *Pipeline) normalize(rows []domain.RawSurveyRecord, report *Report) []domain.SpawnEvent {
	events := make([]domain.SpawnEvent, 0, len(rows))
	for _, row := range rows {
		event, err := domain.NormalizeRecord(row)
		if err != nil {
			p.drop(report, dropReason(err), err)
			continue
		}
		if !p.window.Contains(event.Year) {
			report.RowsDropped[observability.ReasonOutsideWindow]++
			p.metrics.RowsDropped.WithLabelValues(observability.ReasonOutsideWindow).Inc()
			continue
		}
		events = append(events, event)
	}
	return events
}

// dropReason maps a normalization error to its audit label. Errors outside
// the known classes count as "other" rather than piggybacking on an existing
// reason.
func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrBadStartDate):
		return observability.ReasonBadDate
	case errors.Is(err, domain.ErrMissingCoordinates):
		return observability.ReasonMissingCoords
	default:
		return observability.ReasonOther
	}
}

func (p *Pipeline) drop(report *Report, reason string, err error) {
	report.RowsDropped[reason]++
	p.metrics.RowsDropped.WithLabelValues(reason).Inc()
	p.logger.Debug("dropped survey row", "reason", reason, "error", err)
}

// summarize aggregates retained locations concurrently. Per-location
// computation has no cross-location dependency, so this changes nothing about
// the output values.
func (p *Pipeline) summarize(ctx context.Context, retained map[string][]domain.SpawnEvent) (map[string]domain.LocationSummary, error) {
	codes := domain.SortedCodes(retained)
	results := make([]*domain.LocationSummary, len(codes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, code := range codes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := domain.SummarizeLocation(retained[code], p.params.TargetYear)
			if errors.Is(err, domain.ErrNoMeasuredEvents) {
				// The location filter should have removed these; tolerate and skip.
				p.logger.Warn("unmeasured location reached aggregation", "location_code", code)
				return nil
			}
			if err != nil {
				return fmt.Errorf("summarize location %q: %w", code, err)
			}
			results[i] = &sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := make(map[string]domain.LocationSummary, len(codes))
	for i, code := range codes {
		if results[i] != nil {
			summaries[code] = *results[i]
		}
	}
	return summaries, nil
}
