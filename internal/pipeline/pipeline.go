package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Destinations are the hosted layers and tables a run replaces.
type Destinations struct {
	Coverage     map[int]domain.Destination // by resolution
	Summary      domain.Destination         // speed table
	SummaryHexes domain.Destination         // finest hexes with a summary row
}

// Pipeline runs extract, transform, publish, and notify for one reporting period.
type Pipeline struct {
	job          string
	extractor    domain.Extractor
	hexes        domain.HexSource
	publisher    domain.Publisher
	notifier     domain.Notifier
	destinations Destinations
	logger       *slog.Logger
	metrics      *observability.Metrics
	clock        clockwork.Clock
	ready        atomic.Bool
	last         atomic.Pointer[domain.RunReport]
}

// New creates a Pipeline. A nil notifier logs reports instead of sending them.
func New(job string, e domain.Extractor, h domain.HexSource, p domain.Publisher, n domain.Notifier,
	dest Destinations, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock,
) *Pipeline {
	if n == nil {
		n = NewLogNotifier(logger)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		job:          job,
		extractor:    e,
		hexes:        h,
		publisher:    p,
		notifier:     n,
		destinations: dest,
		logger:       logger,
		metrics:      metrics,
		clock:        clock,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastReport returns the report of the most recent finished run.
func (p *Pipeline) LastReport() (domain.RunReport, bool) {
	r := p.last.Load()
	if r == nil {
		return domain.RunReport{}, false
	}
	return *r, true
}

// Run performs one full update and notifies with the resulting report, whether
// or not the run succeeded. Nothing is published if extraction or the
// transform fails.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID: uuid.NewString(),
		Job:   p.job,
		Start: p.clock.Now(),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started")

	p.metrics.RunsTotal.Inc()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, logger, &report)

	report.End = p.clock.Now()
	report.Duration = report.End.Sub(report.Start)
	p.metrics.RunDuration.Observe(report.Duration.Seconds())

	if err != nil {
		report.Status = domain.RunFailed
		report.Error = err.Error()
		p.metrics.RunFailures.Inc()
		logger.Error("run failed", "error", err, "duration", report.Duration)
	} else {
		report.Status = domain.RunSucceeded
		p.ready.Store(true)
		logger.Info("run complete", "duration", report.Duration, "records", report.Records)
	}

	p.last.Store(&report)
	if nerr := p.notifier.Notify(context.WithoutCancel(ctx), report); nerr != nil {
		logger.Warn("notify failed", "error", nerr)
	}
	return report, err
}

// RunEvery runs immediately and then once per interval until ctx is cancelled.
// Failed runs are reported and do not stop the schedule.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	p.logger.Info("scheduler started", "interval", interval)
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = p.Run(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return
		case <-ticker.Chan():
		}
	}
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, report *domain.RunReport) error {
	logger.Info("extracting BDC data")
	extraction, err := p.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	report.AsOf = extraction.AsOf

	records, err := domain.RecordsFromFrame(extraction.Frame)
	if err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	report.Records = len(records)
	p.metrics.RecordsExtracted.Add(float64(len(records)))
	logger.Info("extracted records", "as_of", extraction.AsOf, "files", extraction.Files, "records", len(records))

	logger.Info("loading hexes")
	hexes, err := p.loadHexes(ctx)
	if err != nil {
		return err
	}

	logger.Info("building service polygons", "resolutions", domain.Resolutions)
	result, err := Transform(ctx, records, hexes)
	if err != nil {
		return err
	}
	for res, cells := range result.Unmatched {
		logger.Warn("cells with service have no hex polygon", "resolution", res, "cells", len(cells))
	}
	for _, res := range domain.Resolutions {
		p.metrics.UnmatchedCells.WithLabelValues(strconv.Itoa(res)).Set(float64(len(result.Unmatched[res])))
	}

	logger.Info("publishing")
	layers, err := p.publish(ctx, logger, result)
	if err != nil {
		return err
	}
	report.Layers = layers
	return nil
}

func (p *Pipeline) loadHexes(ctx context.Context) (map[int][]domain.CellGeometry, error) {
	hexes := make(map[int][]domain.CellGeometry, len(domain.Resolutions))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, res := range domain.Resolutions {
		g.Go(func() error {
			cells, err := p.hexes.Hexes(gctx, res)
			if err != nil {
				return fmt.Errorf("load hexes at resolution %d: %w", res, err)
			}
			mu.Lock()
			hexes[res] = cells
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hexes, nil
}

type publication struct {
	dest     domain.Destination
	label    string
	unit     string
	features []domain.Feature
}

// publish replaces every destination in a fixed order: the coverage layers
// coarsest first, then the speed table, then its hexes.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, result Result) ([]domain.LayerCount, error) {
	var plan []publication
	for _, res := range domain.Resolutions {
		plan = append(plan, publication{
			dest:     p.destinations.Coverage[res],
			label:    fmt.Sprintf("Service areas at hex level %d", res),
			unit:     "features",
			features: domain.CoverageFeatures(result.Coverage[res]),
		})
	}
	plan = append(plan,
		publication{
			dest:     p.destinations.Summary,
			label:    "Service record table",
			unit:     "records",
			features: domain.SummaryFeatures(result.Summary),
		},
		publication{
			dest:     p.destinations.SummaryHexes,
			label:    "Hexes for service records",
			unit:     "features",
			features: domain.CellFeatures(result.SummaryHexes),
		},
	)

	layers := make([]domain.LayerCount, 0, len(plan))
	for _, pub := range plan {
		res, err := p.publisher.Publish(ctx, pub.dest, pub.features)
		if err != nil {
			return layers, fmt.Errorf("publish %s: %w", pub.dest.Name, err)
		}
		logger.Info("published", "layer", pub.dest.Name, "added", res.Added, "deleted", res.Deleted)
		p.metrics.FeaturesPublished.WithLabelValues(pub.dest.Name).Set(float64(res.Added))
		layers = append(layers, domain.LayerCount{
			Name:    pub.dest.Name,
			Label:   pub.label,
			Unit:    pub.unit,
			Count:   res.Added,
			Deleted: res.Deleted,
		})
	}
	return layers, nil
}
