package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/broadband-data-etl/internal/frame"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bdcFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New()
	require.NoError(t, f.Add(ColCellRes8, frame.Strings{"8828308281fffff", "8828308283fffff"}))
	require.NoError(t, f.Add(ColProvider, frame.NewCategorical([]string{"Acme", "Acme"})))
	require.NoError(t, f.Add(ColTechnology, frame.NewCategorical([]string{"Cable", "Cable"})))
	require.NoError(t, f.Add(ColMaxDownload, frame.Ints{500, 1000}))
	require.NoError(t, f.Add(ColMaxUpload, frame.Ints{20, 35}))
	require.NoError(t, f.Add(ColBusinessResidential, frame.Strings{"R", "B"}))
	return f
}

func TestRecordsFromFrame(t *testing.T) {
	records, err := RecordsFromFrame(bdcFrame(t))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, AvailabilityRecord{
		CellRes8:            "8828308281fffff",
		Provider:            "Acme",
		Technology:          "Cable",
		MaxDownload:         500,
		MaxUpload:           20,
		BusinessResidential: "R",
	}, records[0])
	assert.Equal(t, int64(1000), records[1].MaxDownload)
	assert.Equal(t, "B", records[1].BusinessResidential)
}

func TestRecordsFromFrame_MissingTechnology(t *testing.T) {
	f := frame.New()
	require.NoError(t, f.Add(ColCellRes8, frame.Strings{"8828308281fffff"}))
	require.NoError(t, f.Add(ColProvider, frame.Strings{"Acme"}))

	_, err := RecordsFromFrame(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.True(t, errors.Is(err, frame.ErrMissingColumn))
	assert.Contains(t, err.Error(), ColTechnology)
}

func TestFeatureConversions(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	coverage := CoverageFeatures([]CoveragePolygon{{
		Technology: "Cable", CommonTech: TechCable, Provider: "Acme",
		MaxDownload: 500, MaxUpload: 20, Category: CategoryWired,
		Geometry: orb.MultiPolygon{square},
	}})
	require.Len(t, coverage, 1)
	assert.Equal(t, "Cable", coverage[0].Attributes[ColCommonTech])
	assert.Equal(t, "wired", coverage[0].Attributes[ColCategory])
	assert.NotNil(t, coverage[0].Geometry)

	summary := SummaryFeatures([]SpeedSummary{{CellID: "c", Provider: "UTOPIA", MaxDownload: 1000, MaxUpload: 1000}})
	require.Len(t, summary, 1)
	assert.Nil(t, summary[0].Geometry)
	assert.Equal(t, int16(1000), summary[0].Attributes[ColMaxDownload])

	cells := CellFeatures([]CellGeometry{{HexID: "h", ObjectID: 7, Geometry: square}})
	assert.Equal(t, map[string]any{"hex_id": "h"}, cells[0].Attributes)
}

func TestRunReport_Lines(t *testing.T) {
	start := time.Date(2024, time.June, 3, 6, 0, 0, 0, time.UTC)
	report := RunReport{
		Job:      "broadband-data",
		Status:   RunSucceeded,
		Start:    start,
		End:      start.Add(90 * time.Second),
		Duration: 90 * time.Second,
		Layers: []LayerCount{
			{Label: "Service areas at hex level 6", Unit: "features", Count: 12},
			{Label: "Service record table", Unit: "records", Count: 340},
		},
	}

	assert.Equal(t, "broadband-data Update Summary", report.Subject())
	assert.Equal(t, []string{
		"broadband-data update 2024-06-03",
		"====================",
		"",
		"Start time: 06:00:00",
		"End time: 06:01:30",
		"Duration: 1m30s",
		"",
		"Service areas at hex level 6: 12 features",
		"Service record table: 340 records",
	}, report.Lines())

	report.Status = RunFailed
	report.Error = "boom"
	assert.Equal(t, "broadband-data Update Failed", report.Subject())
	lines := report.Lines()
	assert.Equal(t, "Run failed: boom", lines[len(lines)-1])
}
