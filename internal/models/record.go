package models

// AddressRecord is one normalized spreadsheet row handed to the resolution
// engine. All fields except Label may be empty; PostalCode, when present, is
// already normalized to the national `#####-###` format.
type AddressRecord struct {
	Label      string // Human-readable name shown in operator prompts.
	Network    string // Commercial network / chain the location belongs to.
	Address    string // Free-text address as found in the spreadsheet.
	PostalCode string // Normalized postal code, or empty.
	City       string // City name, or empty.
	State      string // Two-letter state code, or empty.
}

// GeoCandidate is a coordinate produced by one resolution stage, together
// with the provenance of the query that found it.
type GeoCandidate struct {
	Coordinates Coordinates
	Provenance  string // Which source and query produced this candidate.
	DisplayName string // Resolved display address, when the source returns one.
	City        string // Resolved city, used for geofence anchoring.
	State       string // Resolved state, used for geofence anchoring.
}
