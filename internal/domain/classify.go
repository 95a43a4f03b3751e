package domain

// commonTechByTechnology folds FCC technology labels into common families.
// Labels missing from the table fall into TechOther.
var commonTechByTechnology = map[string]CommonTech{
	"Cable":                     TechCable,
	"Copper":                    TechDSL,
	"Fiber to the Premises":     TechFiber,
	"LBR Fixed Wireless":        TechFixedWireless,
	"Licensed Fixed Wireless":   TechFixedWireless,
	"Unlicensed Fixed Wireless": TechFixedWireless,
	"GSO Satellite":             TechSatellite,
	"NGSO Satellite":            TechSatellite,
}

// ClassifyCommonTech maps an FCC technology label to its common technology.
// Unknown labels map to TechOther; the FCC adds codes between periods.
func ClassifyCommonTech(technology string) CommonTech {
	if ct, ok := commonTechByTechnology[technology]; ok {
		return ct
	}
	return TechOther
}

// CategorizeService maps a common technology to its service category.
func CategorizeService(ct CommonTech) Category {
	switch ct {
	case TechCable, TechDSL, TechFiber:
		return CategoryWired
	case TechFixedWireless:
		return CategoryWireless
	case TechSatellite:
		return CategorySatellite
	default:
		return CategoryOther
	}
}

// ClassifyRecords sets CommonTech and Category on every record in place.
func ClassifyRecords(records []AvailabilityRecord) {
	for i := range records {
		records[i].CommonTech = ClassifyCommonTech(records[i].Technology)
	}
	CategorizeRecords(records)
}

// CategorizeRecords recomputes Category from CommonTech in place. Running it
// again yields the same values.
func CategorizeRecords(records []AvailabilityRecord) {
	for i := range records {
		records[i].Category = CategorizeService(records[i].CommonTech)
	}
}

// CategorizePolygons recomputes Category from CommonTech in place.
func CategorizePolygons(polygons []CoveragePolygon) {
	for i := range polygons {
		polygons[i].Category = CategorizeService(polygons[i].CommonTech)
	}
}

// providerDisplayNames shortens provider names for the published speed table.
var providerDisplayNames = map[string]string{
	"Utah Telecommunication Open Infrastructure Agency": "UTOPIA",
}

// ProviderDisplayName returns the published name for a provider.
func ProviderDisplayName(provider string) string {
	if short, ok := providerDisplayNames[provider]; ok {
		return short
	}
	return provider
}
