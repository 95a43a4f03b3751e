// Command genmock writes a small, reproducible BDC-shaped dataset for local
// runs and the validate command: one zipped availability CSV per technology
// plus GeoJSON hex layers at every published resolution. Cells are real H3
// cells around a center point so the output lines up with hexindex.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -lat 40.7608 -lng -111.8910
package main

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/hexindex"
	"github.com/paulmach/orb/geojson"
)

// Manifest lists the generated files in the shape of the BDC file listing.
type Manifest struct {
	AsOf  string         `json:"as_of_date"`
	State string         `json:"state_name"`
	Files []ManifestFile `json:"files"`
}

type ManifestFile struct {
	FileID     int64  `json:"file_id"`
	Technology string `json:"technology_code_desc"`
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
}

// offer is one provider's plan across a share of the cells.
type offer struct {
	provider   string
	technology string
	techCode   string
	coverage   float64 // fraction of finest cells served
	tiers      [][2]int64
}

var offers = []offer{
	{provider: "Acme Cable", technology: "Cable", techCode: "40", coverage: 0.9, tiers: [][2]int64{{300, 20}, {1000, 35}}},
	{provider: "Beehive Fiber", technology: "Fiber to the Premises", techCode: "50", coverage: 0.4, tiers: [][2]int64{{1000, 1000}, {2000, 2000}}},
	{provider: "Utah Telecommunication Open Infrastructure Agency", technology: "Fiber to the Premises", techCode: "50", coverage: 0.3, tiers: [][2]int64{{10000, 10000}}},
	{provider: "Wasatch Wireless", technology: "Licensed Fixed Wireless", techCode: "71", coverage: 0.6, tiers: [][2]int64{{25, 3}, {100, 20}}},
	{provider: "Orbit Broadband", technology: "NGSO Satellite", techCode: "61", coverage: 1, tiers: [][2]int64{{220, 25}}},
}

var header = []string{
	"frn", "provider_id", "brand_name", "location_id", "technology",
	"max_advertised_download_speed", "max_advertised_upload_speed", "low_latency",
	"business_residential_code", "state_usps", "block_geoid", "h3_res8_id",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	lat := flag.Float64("lat", 40.7608, "center latitude")
	lng := flag.Float64("lng", -111.8910, "center longitude")
	seed := flag.Uint64("seed", 2024, "random seed")
	locations := flag.Int("locations", 3, "locations per served cell")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	cells, err := cellsAround(*lat, *lng)
	if err != nil {
		return err
	}
	for _, res := range domain.Resolutions {
		path := filepath.Join(*out, fmt.Sprintf("hexes_%d.geojson", res))
		if err := writeHexes(path, cells[res]); err != nil {
			return err
		}
		fmt.Printf("wrote %d hexes to %s\n", len(cells[res]), path)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	manifest := Manifest{AsOf: "2024-06-30", State: "Utah"}
	byTech := make(map[string][][]string)
	var techOrder []string
	for i, o := range offers {
		if _, ok := byTech[o.technology]; !ok {
			techOrder = append(techOrder, o.technology)
		}
		byTech[o.technology] = append(byTech[o.technology], rows(rng, o, i, cells[domain.FinestResolution], *locations)...)
	}

	for i, tech := range techOrder {
		id := int64(1000 + i)
		name := fmt.Sprintf("bdc_49_%d_fixed_broadband_J24.csv", id)
		path := filepath.Join(*out, name+".zip")
		if err := writeZip(path, name, byTech[tech]); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, ManifestFile{FileID: id, Technology: tech, Path: filepath.Base(path), Rows: len(byTech[tech])})
		fmt.Printf("wrote %d %s rows to %s\n", len(byTech[tech]), tech, path)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(*out, "manifest.json"), data, 0o644)
}

// cellsAround returns the resolution-6 cell containing the point and all of
// its descendants at the finer published resolutions.
func cellsAround(lat, lng float64) (map[int][]string, error) {
	top, err := hexindex.FromLatLng(lat, lng, domain.Resolutions[0])
	if err != nil {
		return nil, err
	}
	cells := map[int][]string{domain.Resolutions[0]: {top}}
	for _, res := range domain.Resolutions[1:] {
		children, err := hexindex.Children(top, res)
		if err != nil {
			return nil, err
		}
		cells[res] = children
	}
	return cells, nil
}

func rows(rng *rand.Rand, o offer, providerIdx int, cells []string, perCell int) [][]string {
	var out [][]string
	for _, cell := range cells {
		if rng.Float64() >= o.coverage {
			continue
		}
		tier := o.tiers[rng.IntN(len(o.tiers))]
		for loc := 0; loc < perCell; loc++ {
			code := "R"
			switch rng.IntN(10) {
			case 0:
				code = "B"
			case 1:
				code = "X"
			}
			out = append(out, []string{
				fmt.Sprintf("%010d", providerIdx+1),
				strconv.Itoa(130000 + providerIdx),
				o.provider,
				strconv.Itoa(1_000_000 + rng.IntN(9_000_000)),
				o.techCode,
				strconv.FormatInt(tier[0], 10),
				strconv.FormatInt(tier[1], 10),
				"1",
				code,
				"UT",
				"490351001001000",
				cell,
			})
		}
	}
	return out
}

func writeZip(path, member string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(member)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return zw.Close()
}

func writeHexes(path string, cells []string) error {
	fc := geojson.NewFeatureCollection()
	for i, cell := range cells {
		poly, err := hexindex.Boundary(cell)
		if err != nil {
			return err
		}
		f := geojson.NewFeature(poly)
		f.Properties["hex_id"] = cell
		f.Properties["objectid"] = i + 1
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
