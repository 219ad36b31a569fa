// Package resolver implements the staged address-to-coordinate resolution
// engine: postal-code lookup first, then progressively broader free-text
// queries, each candidate gated by geofence validation.
package resolver

import (
	"context"
	"log/slog"

	"github.com/ledax/geoetl/internal/geocoding"
	"github.com/ledax/geoetl/internal/geofence"
	"github.com/ledax/geoetl/internal/models"
)

// PostalProvider resolves a normalized postal code to a candidate.
type PostalProvider interface {
	ResolvePostalCode(ctx context.Context, postalCode string) geocoding.Result
}

// Outcome is what one resolution attempt produced. When NeedsIntervention is
// set the record found no validated candidate and the caller should consult
// the operator, showing Best (the first candidate any stage produced, even
// an invalid one) and Reason.
type Outcome struct {
	Result            models.ResolutionResult
	NeedsIntervention bool
	Best              *models.GeoCandidate
	BestDistanceKm    float64 // Distance of Best to its anchor; valid when Best is set.
	Reason            models.UnresolvedReason
	TransientFailure  bool // A stage failed transiently; the caller should pause briefly.
}

// Resolver drives the resolution state machine over the two remote sources.
type Resolver struct {
	postal   PostalProvider
	freeText geocoding.FreeTextProvider
	fence    *geofence.Validator
	log      *slog.Logger
}

// New creates a resolver over the given sources and geofence validator.
func New(
	postal PostalProvider,
	freeText geocoding.FreeTextProvider,
	fence *geofence.Validator,
	log *slog.Logger,
) *Resolver {
	return &Resolver{postal: postal, freeText: freeText, fence: fence, log: log}
}

// Resolve runs the stages in priority order: postal code, structured
// free-text query, street-only free-text query. The first candidate passing
// geofence validation wins and later stages are never attempted. Remote
// failures are non-fatal: a transient error is treated like a miss and the
// next stage runs. Each stage computes independently; an unvalidated earlier
// candidate is never reused as a later stage's value.
func (r *Resolver) Resolve(ctx context.Context, record models.AddressRecord) Outcome {
	outcome := Outcome{Reason: models.ReasonNotFound}

	for _, stage := range []func(context.Context, models.AddressRecord) geocoding.Result{
		r.tryPostalCode,
		r.tryStructuredQuery,
		r.tryStreetOnly,
	} {
		result := stage(ctx, record)

		switch result.Status {
		case geocoding.StatusTransientError:
			r.log.WarnContext(ctx, "Stage failed transiently, falling through",
				"label", record.Label, "error", result.Err)
			outcome.TransientFailure = true
			continue
		case geocoding.StatusNotFound:
			continue
		case geocoding.StatusFound:
		}

		candidate := result.Candidate
		verdict := r.fence.Validate(
			ctx,
			candidate.Coordinates,
			r.anchorCity(record, candidate),
			r.anchorState(record, candidate),
		)

		if verdict.Within {
			r.log.DebugContext(ctx, "Candidate validated",
				"label", record.Label, "provenance", candidate.Provenance, "distance_km", verdict.DistanceKm)
			outcome.Result = models.ResolvedResult(candidate.Coordinates, candidate.Provenance)
			return outcome
		}

		r.log.InfoContext(ctx, "Candidate rejected by geofence",
			"label", record.Label, "provenance", candidate.Provenance,
			"distance_km", verdict.DistanceKm, "tolerance_km", verdict.Anchor.ToleranceKm)

		// Keep the first rejected candidate for the operator prompt.
		if outcome.Best == nil {
			best := candidate
			outcome.Best = &best
			outcome.BestDistanceKm = verdict.DistanceKm
			outcome.Reason = models.ReasonOutOfGeofence
		}
	}

	outcome.Result = models.UnresolvedResult(outcome.Reason)
	outcome.NeedsIntervention = true
	return outcome
}

// tryPostalCode queries the postal-code directory when the record carries a
// valid normalized code. An unusable code short-circuits without a remote
// call.
func (r *Resolver) tryPostalCode(ctx context.Context, record models.AddressRecord) geocoding.Result {
	cep := NormalizePostalCode(record.PostalCode)
	if cep == "" {
		return geocoding.NotFound()
	}

	return r.postal.ResolvePostalCode(ctx, cep)
}

// tryStructuredQuery queries the free-text service with the full cleaned
// address plus every structured hint the record offers.
func (r *Resolver) tryStructuredQuery(ctx context.Context, record models.AddressRecord) geocoding.Result {
	street := CleanAddress(record.Address)
	if !Queryable(street) {
		return geocoding.NotFound()
	}

	return r.freeText.Resolve(ctx, geocoding.Query{
		Street:     street,
		City:       record.City,
		State:      record.State,
		Country:    "Brazil",
		PostalCode: NormalizePostalCode(record.PostalCode),
	})
}

// tryStreetOnly retries with only the street name and region, dropping the
// postal code and city. Broader recall for addresses the stricter query
// missed.
func (r *Resolver) tryStreetOnly(ctx context.Context, record models.AddressRecord) geocoding.Result {
	street := StreetName(record.Address)
	if !Queryable(street) {
		return geocoding.NotFound()
	}

	return r.freeText.Resolve(ctx, geocoding.Query{
		Street:  street,
		State:   record.State,
		Country: "Brazil",
	})
}

// anchorCity picks the city to anchor geofence validation on: the
// spreadsheet's own claim first, then whatever the source resolved.
func (r *Resolver) anchorCity(record models.AddressRecord, candidate models.GeoCandidate) string {
	if record.City != "" {
		return record.City
	}
	return candidate.City
}

func (r *Resolver) anchorState(record models.AddressRecord, candidate models.GeoCandidate) string {
	if record.State != "" {
		return record.State
	}
	return candidate.State
}
