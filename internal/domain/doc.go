// Package domain models FCC Broadband Data Collection (BDC) fixed-availability
// data and the coverage layers derived from it.
//
// # Data Source
//
// Availability records come from the FCC National Broadband Map public API,
// https://bdc.fcc.gov/api/public/map. Each reporting period ("as of" date) the FCC
// publishes one zipped CSV per state and technology. The job downloads the
// latest period's fixed-broadband files for one state and stacks them into a
// single batch.
//
// # BDC Data Conventions
//
// Location:
//
//	Each row is one broadband-serviceable location, reported by its H3 cell at
//	resolution 8 ("h3_res8_id", lowercase hex such as "8828308281fffff").
//	Coarser cells at resolutions 6 and 7 are derived by walking up the H3
//	hierarchy, see package hexindex.
//
// Provider:
//
//	"brand_name" is the consumer-facing name. The set is small but open-ended,
//	so it is carried as a categorical column scoped to the file it came from.
//	"Utah Telecommunication Open Infrastructure Agency" is shortened to
//	"UTOPIA" in the published speed table.
//
// Technology:
//
//	The file listing carries "technology_code_desc", copied onto every row as
//	"technology_name". Known labels fold into common technologies:
//
//	  Cable                                         → Cable
//	  Copper                                        → DSL
//	  Fiber to the Premises                         → Fiber
//	  LBR / Licensed / Unlicensed Fixed Wireless    → Fixed Wireless
//	  GSO Satellite, NGSO Satellite                 → Satellite
//	  anything else                                 → Other Tech
//
//	and common technologies fold into categories: Cable, DSL and Fiber are
//	"wired", Fixed Wireless is "wireless", Satellite is "satellite", and the
//	rest is "Other Category". New FCC codes land in the catch-all buckets.
//
// Speeds:
//
//	"max_advertised_download_speed" and "max_advertised_upload_speed" are whole
//	Mbps. The published speed table stores them as int16.
//
// Residential flag:
//
//	"business_residential_code" is R (residential), B (business) or X (both).
//	Only R and X rows contribute to coverage.
package domain
