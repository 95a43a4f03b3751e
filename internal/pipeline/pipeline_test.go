package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/frame"
	"github.com/couchcryptid/broadband-data-etl/internal/hexindex"
	"github.com/couchcryptid/broadband-data-etl/internal/observability"
	"github.com/couchcryptid/broadband-data-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	center  = "8828308281fffff"
	sibling = "8828308283fffff"
	parent7 = "872830828ffffff"
)

// --- mocks ---

type mockExtractor struct {
	extraction domain.Extraction
	err        error
	calls      chan struct{}
}

func (m *mockExtractor) Extract(_ context.Context) (domain.Extraction, error) {
	if m.calls != nil {
		m.calls <- struct{}{}
	}
	return m.extraction, m.err
}

type mockHexSource struct {
	cells map[int][]domain.CellGeometry
	err   error
}

func (m *mockHexSource) Hexes(_ context.Context, res int) ([]domain.CellGeometry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cells[res], nil
}

type publishCall struct {
	dest     domain.Destination
	features []domain.Feature
}

type mockPublisher struct {
	mu     sync.Mutex
	calls  []publishCall
	failOn string
}

func (m *mockPublisher) Publish(_ context.Context, dest domain.Destination, features []domain.Feature) (domain.PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dest.Name == m.failOn {
		return domain.PublishResult{}, errors.New("service unavailable")
	}
	m.calls = append(m.calls, publishCall{dest: dest, features: features})
	return domain.PublishResult{Added: len(features)}, nil
}

type mockNotifier struct {
	reports []domain.RunReport
	err     error
}

func (m *mockNotifier) Notify(_ context.Context, report domain.RunReport) error {
	m.reports = append(m.reports, report)
	return m.err
}

// --- helpers ---

func boundary(t *testing.T, cell string) domain.CellGeometry {
	t.Helper()
	poly, err := hexindex.Boundary(cell)
	require.NoError(t, err)
	return domain.CellGeometry{HexID: cell, Geometry: poly}
}

func testHexes(t *testing.T) map[int][]domain.CellGeometry {
	t.Helper()
	parent6, err := hexindex.Ancestor(center, 6)
	require.NoError(t, err)
	return map[int][]domain.CellGeometry{
		6: {boundary(t, parent6)},
		7: {boundary(t, parent7)},
		8: {boundary(t, center), boundary(t, sibling), boundary(t, "8828308285fffff")},
	}
}

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New()
	require.NoError(t, f.Add(domain.ColCellRes8, frame.Strings{center, sibling, center, sibling}))
	require.NoError(t, f.Add(domain.ColProvider, frame.NewCategorical([]string{"Acme", "Acme", "Acme", "Utah Telecommunication Open Infrastructure Agency"})))
	require.NoError(t, f.Add(domain.ColTechnology, frame.NewCategorical([]string{"Cable", "Cable", "Fiber to the Premises", "Fiber to the Premises"})))
	require.NoError(t, f.Add(domain.ColMaxDownload, frame.Ints{300, 300, 1000, 10000}))
	require.NoError(t, f.Add(domain.ColMaxUpload, frame.Ints{20, 20, 1000, 10000}))
	require.NoError(t, f.Add(domain.ColBusinessResidential, frame.Strings{"R", "X", "R", "R"}))
	return f
}

func testDestinations() pipeline.Destinations {
	return pipeline.Destinations{
		Coverage: map[int]domain.Destination{
			6: {Name: "service_hexes_6", Kind: domain.KindLayer},
			7: {Name: "service_hexes_7", Kind: domain.KindLayer},
			8: {Name: "service_hexes_8", Kind: domain.KindLayer},
		},
		Summary:      domain.Destination{Name: "service_records", Kind: domain.KindTable},
		SummaryHexes: domain.Destination{Name: "service_record_hexes", Kind: domain.KindLayer, RelationshipBound: true},
	}
}

type fixture struct {
	extractor *mockExtractor
	hexes     *mockHexSource
	publisher *mockPublisher
	notifier  *mockNotifier
	clock     *clockwork.FakeClock
	pipeline  *pipeline.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		extractor: &mockExtractor{extraction: domain.Extraction{AsOf: "2024-06-30", Files: 2, Frame: testFrame(t)}},
		hexes:     &mockHexSource{cells: testHexes(t)},
		publisher: &mockPublisher{},
		notifier:  &mockNotifier{},
		clock:     clockwork.NewFakeClockAt(time.Date(2024, time.October, 1, 6, 0, 0, 0, time.UTC)),
	}
	f.pipeline = pipeline.New("broadband-data", f.extractor, f.hexes, f.publisher, f.notifier,
		testDestinations(), slog.Default(), observability.NewMetricsForTesting(), f.clock)
	return f
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, report.Status)
	assert.Equal(t, "2024-06-30", report.AsOf)
	assert.Equal(t, 4, report.Records)
	assert.NotEmpty(t, report.RunID)
	require.NoError(t, f.pipeline.CheckReadiness(context.Background()))

	var names []string
	for _, c := range f.publisher.calls {
		names = append(names, c.dest.Name)
	}
	assert.Equal(t, []string{"service_hexes_6", "service_hexes_7", "service_hexes_8", "service_records", "service_record_hexes"}, names)

	// Acme cable covers both cells with the same speeds, so it dissolves to one
	// polygon; each fiber offer keeps its own polygon.
	assert.Len(t, f.publisher.calls[2].features, 3)
	assert.Len(t, f.publisher.calls[3].features, 4)
	assert.Len(t, f.publisher.calls[4].features, 2)

	for _, row := range f.publisher.calls[3].features {
		assert.Nil(t, row.Geometry)
		assert.NotEqual(t, "Utah Telecommunication Open Infrastructure Agency", row.Attributes[domain.ColProvider])
	}

	require.Len(t, report.Layers, 5)
	assert.Equal(t, "Service record table", report.Layers[3].Label)
	assert.Equal(t, "records", report.Layers[3].Unit)
	assert.Equal(t, 4, report.Layers[3].Count)

	require.Len(t, f.notifier.reports, 1)
	assert.Equal(t, report, f.notifier.reports[0])

	last, ok := f.pipeline.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestPipeline_Run_ExtractErrorPublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = errors.New("401 unauthorized")

	_, ok := f.pipeline.LastReport()
	assert.False(t, ok)

	report, err := f.pipeline.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, domain.RunFailed, report.Status)
	assert.Contains(t, report.Error, "401 unauthorized")
	assert.Empty(t, f.publisher.calls)
	require.Len(t, f.notifier.reports, 1)
	assert.Equal(t, "broadband-data Update Failed", f.notifier.reports[0].Subject())
	assert.Error(t, f.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_Run_InvalidCellAbortsBeforePublish(t *testing.T) {
	f := newFixture(t)
	bad := frame.New()
	bad.MustAdd(domain.ColCellRes8, frame.Strings{"not-a-cell"}).
		MustAdd(domain.ColProvider, frame.Strings{"Acme"}).
		MustAdd(domain.ColTechnology, frame.Strings{"Cable"}).
		MustAdd(domain.ColMaxDownload, frame.Ints{10}).
		MustAdd(domain.ColMaxUpload, frame.Ints{1}).
		MustAdd(domain.ColBusinessResidential, frame.Strings{"R"})
	f.extractor.extraction.Frame = bad

	_, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidCell)
	assert.Empty(t, f.publisher.calls)
}

func TestPipeline_Run_SchemaError(t *testing.T) {
	f := newFixture(t)
	f.extractor.extraction.Frame = frame.New().MustAdd(domain.ColCellRes8, frame.Strings{center})

	_, err := f.pipeline.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrSchema)
}

func TestPipeline_Run_HexLoadError(t *testing.T) {
	f := newFixture(t)
	f.hexes.err = errors.New("token expired")

	_, err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load hexes")
	assert.Empty(t, f.publisher.calls)
}

func TestPipeline_Run_PublishErrorStopsLaterLayers(t *testing.T) {
	f := newFixture(t)
	f.publisher.failOn = "service_records"

	report, err := f.pipeline.Run(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "publish service_records")
	assert.Len(t, f.publisher.calls, 3)
	assert.Equal(t, domain.RunFailed, report.Status)
}

func TestPipeline_Run_NotifyErrorIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, report.Status)
}

func TestPipeline_Run_UsesClock(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, f.clock.Now(), report.Start)
	assert.Equal(t, report.Start, report.End)
	assert.Zero(t, report.Duration)
}

func TestPipeline_RunEvery(t *testing.T) {
	f := newFixture(t)
	f.extractor.calls = make(chan struct{}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipeline.RunEvery(ctx, 24*time.Hour)
		close(done)
	}()

	waitForCall(t, f.extractor.calls)
	f.clock.Advance(24 * time.Hour)
	waitForCall(t, f.extractor.calls)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, len(f.notifier.reports), 1)
}

func waitForCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("extractor was not called")
	}
}

func TestLogNotifier(t *testing.T) {
	n := pipeline.NewLogNotifier(slog.Default())
	assert.NoError(t, n.Notify(context.Background(), domain.RunReport{Job: "broadband-data", Status: domain.RunFailed, Error: "boom"}))
}
