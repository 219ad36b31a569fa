package models

// Location is the persisted entity produced for each processed record.
// Unresolved records keep nil coordinates and carry the failure reason in
// Provenance.
type Location struct {
	Name            string
	Network         string
	OriginalAddress string
	PostalCode      string
	City            string
	State           string
	Provenance      string
	Latitude        *float64
	Longitude       *float64
}
