package models

// UnresolvedReason explains why a record ended without coordinates.
type UnresolvedReason string

const (
	// ReasonNotFound means no source produced any candidate.
	ReasonNotFound UnresolvedReason = "not_found"
	// ReasonOutOfGeofence means the only candidates fell outside the geofence.
	ReasonOutOfGeofence UnresolvedReason = "out_of_geofence"
	// ReasonSkippedByOperator means the operator explicitly skipped the record.
	ReasonSkippedByOperator UnresolvedReason = "skipped_by_operator"
)

// ResolutionResult is the terminal output for one record: either a resolved
// coordinate with its provenance, or an unresolved marker with a reason.
// It is never mutated after creation.
type ResolutionResult struct {
	Resolved   bool
	Coordinate Coordinates
	Provenance string
	Reason     UnresolvedReason // Set only when Resolved is false.
}

// Resolved builds a successful result.
func ResolvedResult(coord Coordinates, provenance string) ResolutionResult {
	return ResolutionResult{Resolved: true, Coordinate: coord, Provenance: provenance}
}

// Unresolved builds a failed result with the given reason.
func UnresolvedResult(reason UnresolvedReason) ResolutionResult {
	return ResolutionResult{Resolved: false, Reason: reason}
}
