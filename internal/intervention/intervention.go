// Package intervention defines the operator fallback port: when automatic
// resolution fails, the engine hands the record to a Handler and blocks until
// a human decides. Only the terminal implementation performs interactive
// input; tests substitute a scripted handler.
package intervention

import (
	"context"

	"github.com/ledax/geoetl/internal/models"
)

// Request carries everything the operator needs to decide one record.
type Request struct {
	Record         models.AddressRecord
	Best           *models.GeoCandidate // Best automatic candidate, possibly out of fence; nil when none.
	BestDistanceKm float64              // Distance of Best to its geofence anchor.
	Reason         models.UnresolvedReason
}

// Handler resolves a record the automatic stages gave up on. Implementations
// are synchronous and handle one record at a time.
type Handler interface {
	Resolve(ctx context.Context, req Request) (models.ResolutionResult, error)
}
