// Command validate runs the transform offline over a genmock dataset and
// checks the output against independent recomputations: decoded row counts,
// classification, dissolved coverage areas, the per-cell speed summary, and
// the summary hexes.
//
// Usage:
//
//	go run ./cmd/validate -dir data/mock
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/broadband-data-etl/internal/adapter/bdc"
	"github.com/couchcryptid/broadband-data-etl/internal/coverage"
	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/frame"
	"github.com/couchcryptid/broadband-data-etl/internal/pipeline"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Relative tolerance for comparing dissolved areas with summed cell areas.
const areaTolerance = 1e-6

type manifest struct {
	AsOf  string `json:"as_of_date"`
	Files []struct {
		FileID     int64  `json:"file_id"`
		Technology string `json:"technology_code_desc"`
		Path       string `json:"path"`
		Rows       int    `json:"rows"`
	} `json:"files"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory written by genmock")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Broadband Coverage Validation ===")
	fmt.Println()

	m, err := loadManifest(filepath.Join(dir, "manifest.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load manifest: %v\n", err)
		return 1
	}

	extract := &phase{name: "Extraction"}
	frames := make([]*frame.Frame, 0, len(m.Files))
	for _, f := range m.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", f.Path, err)
			return 1
		}
		fr, err := bdc.DecodeFile(data, f.Technology)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: decode %s: %v\n", f.Path, err)
			return 1
		}
		if fr.Len() != f.Rows {
			extract.errorf("%s: decoded %d rows, manifest says %d", f.Path, fr.Len(), f.Rows)
		}
		frames = append(frames, fr)
	}
	stacked, err := frame.Concat(frames, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: concat: %v\n", err)
		return 1
	}
	records, err := domain.RecordsFromFrame(stacked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: records: %v\n", err)
		return 1
	}
	fmt.Printf("Loaded %d records from %d files (as of %s)\n", len(records), len(m.Files), m.AsOf)

	hexes := make(map[int][]domain.CellGeometry, len(domain.Resolutions))
	for _, res := range domain.Resolutions {
		cells, err := loadHexes(filepath.Join(dir, fmt.Sprintf("hexes_%d.geojson", res)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load hexes %d: %v\n", res, err)
			return 1
		}
		hexes[res] = cells
	}

	result, err := pipeline.Transform(context.Background(), records, hexes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: transform: %v\n", err)
		return 1
	}

	phases := []*phase{
		extract,
		validateClassification(records),
		validateCoverage(records, hexes, result),
		validateSummary(records, result),
		validateSummaryHexes(hexes, result),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		allPassed = false
		fmt.Printf("FAIL  %s (%d errors)\n", p.name, len(p.errors))
		for i, e := range p.errors {
			if i == 10 {
				fmt.Printf("      ... and %d more\n", len(p.errors)-10)
				break
			}
			fmt.Printf("      %s\n", e)
		}
	}
	fmt.Println()
	for _, res := range domain.Resolutions {
		fmt.Printf("Service areas at hex level %d: %d features\n", res, len(result.Coverage[res]))
	}
	fmt.Printf("Service record table: %d records\n", len(result.Summary))
	fmt.Printf("Hexes for service records: %d features\n", len(result.SummaryHexes))

	if !allPassed {
		return 1
	}
	return 0
}

func validateClassification(records []domain.AvailabilityRecord) *phase {
	p := &phase{name: "Classification"}
	for i, r := range records {
		if r.CommonTech == "" || r.Category == "" {
			p.errorf("row %d: not classified", i)
			continue
		}
		if want := domain.CategorizeService(domain.ClassifyCommonTech(r.Technology)); r.Category != want {
			p.errorf("row %d: category %q, want %q", i, r.Category, want)
		}
		for _, res := range domain.Resolutions[:len(domain.Resolutions)-1] {
			if r.Cell(res) == "" {
				p.errorf("row %d: no level %d cell", i, res)
			}
		}
	}
	return p
}

type groupKey struct {
	technology string
	common     domain.CommonTech
	provider   string
	down, up   int64
}

// validateCoverage checks that every dissolved polygon has exactly the area of
// the distinct cells in its group.
func validateCoverage(records []domain.AvailabilityRecord, hexes map[int][]domain.CellGeometry, result pipeline.Result) *phase {
	p := &phase{name: "Coverage dissolve"}
	for _, res := range domain.Resolutions {
		aggs, err := coverage.Aggregate(records, res, hexes[res])
		if err != nil {
			p.errorf("level %d: aggregate: %v", res, err)
			continue
		}
		want := make(map[groupKey]float64)
		for _, a := range aggs {
			if a.Geometry == nil {
				continue
			}
			want[groupKey{a.Technology, a.CommonTech, a.Provider, a.MaxDownload, a.MaxUpload}] += planar.Area(a.Geometry)
		}

		if len(result.Coverage[res]) != len(want) {
			p.errorf("level %d: %d polygons, %d groups", res, len(result.Coverage[res]), len(want))
		}
		seen := make(map[groupKey]bool)
		for _, poly := range result.Coverage[res] {
			k := groupKey{poly.Technology, poly.CommonTech, poly.Provider, poly.MaxDownload, poly.MaxUpload}
			if seen[k] {
				p.errorf("level %d: duplicate group %+v", res, k)
			}
			seen[k] = true

			got := planar.Area(poly.Geometry)
			if math.Abs(got-want[k]) > want[k]*areaTolerance {
				p.errorf("level %d: %s %s area %.10f, cells sum to %.10f", res, poly.Provider, poly.Technology, got, want[k])
			}
			for _, part := range poly.Geometry {
				if part[0].Orientation() != orb.CCW {
					p.errorf("level %d: %s %s has a clockwise shell", res, poly.Provider, poly.Technology)
				}
			}
		}
	}
	return p
}

type summaryKey struct {
	cell     string
	provider string
	common   domain.CommonTech
}

// validateSummary recomputes the per-cell maxima from the records.
func validateSummary(records []domain.AvailabilityRecord, result pipeline.Result) *phase {
	p := &phase{name: "Speed summary"}
	want := make(map[summaryKey][2]int64)
	for _, r := range records {
		if !r.ResidentialEligible() {
			continue
		}
		k := summaryKey{r.CellRes8, domain.ProviderDisplayName(r.Provider), r.CommonTech}
		cur := want[k]
		want[k] = [2]int64{max(cur[0], r.MaxDownload), max(cur[1], r.MaxUpload)}
	}

	if len(result.Summary) != len(want) {
		p.errorf("%d summary rows, %d groups", len(result.Summary), len(want))
	}
	for _, row := range result.Summary {
		k := summaryKey{row.CellID, row.Provider, row.CommonTech}
		w, ok := want[k]
		if !ok {
			p.errorf("unexpected row %+v", k)
			continue
		}
		if int64(row.MaxDownload) != w[0] || int64(row.MaxUpload) != w[1] {
			p.errorf("%+v: speeds %d/%d, want %d/%d", k, row.MaxDownload, row.MaxUpload, w[0], w[1])
		}
		if row.Category != domain.CategorizeService(row.CommonTech) {
			p.errorf("%+v: category %q", k, row.Category)
		}
	}
	return p
}

func validateSummaryHexes(hexes map[int][]domain.CellGeometry, result pipeline.Result) *phase {
	p := &phase{name: "Summary hexes"}
	inSummary := make(map[string]bool)
	for _, row := range result.Summary {
		inSummary[row.CellID] = true
	}
	known := make(map[string]bool)
	for _, c := range hexes[domain.FinestResolution] {
		known[c.HexID] = true
	}

	got := make(map[string]bool)
	for _, c := range result.SummaryHexes {
		if !inSummary[c.HexID] {
			p.errorf("hex %s has no summary row", c.HexID)
		}
		if got[c.HexID] {
			p.errorf("hex %s listed twice", c.HexID)
		}
		got[c.HexID] = true
	}
	for cell := range inSummary {
		if known[cell] && !got[cell] {
			p.errorf("summary cell %s is missing from the hex output", cell)
		}
	}
	return p
}

func loadManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	return m, json.Unmarshal(data, &m)
}

func loadHexes(path string) ([]domain.CellGeometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	cells := make([]domain.CellGeometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return nil, fmt.Errorf("hex %v is not a polygon", f.Properties["hex_id"])
		}
		cells = append(cells, domain.CellGeometry{
			HexID:    f.Properties.MustString("hex_id", ""),
			ObjectID: int64(f.Properties.MustFloat64("objectid", 0)),
			Geometry: poly,
		})
	}
	return cells, nil
}
