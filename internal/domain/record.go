package domain

import (
	"github.com/paulmach/orb"
)

// Resolutions the job publishes coverage layers for, coarsest first.
var Resolutions = []int{6, 7, 8}

// FinestResolution is the resolution the FCC reports locations at.
const FinestResolution = 8

// SupportedResolution reports whether coverage can be computed at res.
func SupportedResolution(res int) bool {
	for _, r := range Resolutions {
		if r == res {
			return true
		}
	}
	return false
}

// CommonTech is a simplified technology family.
type CommonTech string

const (
	TechCable         CommonTech = "Cable"
	TechDSL           CommonTech = "DSL"
	TechFiber         CommonTech = "Fiber"
	TechFixedWireless CommonTech = "Fixed Wireless"
	TechSatellite     CommonTech = "Satellite"
	TechOther         CommonTech = "Other Tech"
)

// Category is the broadest service grouping.
type Category string

const (
	CategoryWired     Category = "wired"
	CategoryWireless  Category = "wireless"
	CategorySatellite Category = "satellite"
	CategoryOther     Category = "Other Category"
)

// AvailabilityRecord is one (location, provider, technology) row from a BDC file,
// plus the columns the pipeline derives from it.
type AvailabilityRecord struct {
	CellRes8            string // h3_res8_id
	Provider            string // brand_name
	Technology          string // technology_name
	MaxDownload         int64  // max_advertised_download_speed, Mbps
	MaxUpload           int64  // max_advertised_upload_speed, Mbps
	BusinessResidential string // business_residential_code

	// Derived.
	CellRes7   string
	CellRes6   string
	CommonTech CommonTech
	Category   Category
}

// Cell returns the record's cell id at res, or "" when it has not been derived.
func (r AvailabilityRecord) Cell(res int) string {
	switch res {
	case 8:
		return r.CellRes8
	case 7:
		return r.CellRes7
	case 6:
		return r.CellRes6
	default:
		return ""
	}
}

// SetCell stores a derived ancestor cell id.
func (r *AvailabilityRecord) SetCell(res int, cell string) {
	switch res {
	case 8:
		r.CellRes8 = cell
	case 7:
		r.CellRes7 = cell
	case 6:
		r.CellRes6 = cell
	}
}

// ResidentialEligible reports whether the location is residential or mixed use.
func (r AvailabilityRecord) ResidentialEligible() bool {
	return r.BusinessResidential == "R" || r.BusinessResidential == "X"
}

// CellGeometry is one hex polygon from a hosted hex layer.
type CellGeometry struct {
	HexID    string
	ObjectID int64 // platform feature id, never published
	Geometry orb.Polygon
}

// CellAggregate is the best advertised service for one
// (cell, technology, provider, common tech) group at a resolution, joined to
// the cell's polygon. Geometry is nil when the hex layer has no row for the cell.
type CellAggregate struct {
	CellID      string
	Technology  string
	Provider    string
	CommonTech  CommonTech
	MaxDownload int64
	MaxUpload   int64

	ObjectID int64
	Geometry orb.Polygon
}

// CoveragePolygon is the union of every cell sharing one
// (technology, common tech, provider, download, upload) tuple.
type CoveragePolygon struct {
	Technology  string
	CommonTech  CommonTech
	Provider    string
	MaxDownload int64
	MaxUpload   int64
	Category    Category
	Geometry    orb.MultiPolygon
}

// SpeedSummary is the best advertised service per finest cell, provider and
// common technology, regardless of the exact FCC technology.
type SpeedSummary struct {
	CellID      string // h3_res8_id
	Provider    string
	CommonTech  CommonTech
	Category    Category
	MaxDownload int16
	MaxUpload   int16
}
