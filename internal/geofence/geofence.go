// Package geofence validates that resolved coordinates are geographically
// plausible for the claimed location, by measuring great-circle distance
// against a reference anchor.
package geofence

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ledax/geoetl/internal/geocoding"
	"github.com/ledax/geoetl/internal/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Anchor is a reference coordinate with an acceptance radius. A candidate is
// plausible when it falls within ToleranceKm of Coordinate.
type Anchor struct {
	Coordinate  models.Coordinates
	ToleranceKm float64
	Label       string // Describes the anchor in logs and operator prompts.
}

// Within reports whether candidate falls inside the anchor's radius.
func (a Anchor) Within(candidate models.Coordinates) bool {
	return DistanceKm(candidate, a.Coordinate) <= a.ToleranceKm
}

// Policy decides what happens when no anchor can be resolved for a record,
// leaving validation indeterminate.
type Policy string

const (
	// PolicyAccept treats an indeterminate validation as a pass. A missing
	// city centroid is a gap in the reference data, not evidence against the
	// candidate.
	PolicyAccept Policy = "accept"
	// PolicyReject treats an indeterminate validation as a failure, routing
	// the record to manual review.
	PolicyReject Policy = "reject"
)

// Verdict is the outcome of one geofence check.
type Verdict struct {
	Within        bool
	Indeterminate bool    // True when no anchor could be resolved.
	DistanceKm    float64 // Distance to the anchor; zero when indeterminate.
	Anchor        Anchor  // The anchor the check ran against.
}

// Validator checks candidates against the best available anchor: a
// dynamically resolved city centroid when the record names a resolvable
// city, else the static regional anchor. City centroids resolve through the
// free-text provider and therefore share its cache and rate limiter.
type Validator struct {
	static          *Anchor
	cityToleranceKm float64
	centroids       geocoding.FreeTextProvider
	policy          Policy
	log             *slog.Logger
}

// NewValidator builds a validator. static may be nil when only dynamic city
// anchoring is wanted; centroids may be nil when only the static anchor is
// wanted. At least one must be provided, and tolerances must be non-negative.
func NewValidator(
	static *Anchor,
	centroids geocoding.FreeTextProvider,
	cityToleranceKm float64,
	policy Policy,
	log *slog.Logger,
) (*Validator, error) {
	if static == nil && centroids == nil {
		return nil, fmt.Errorf("geofence validator needs a static anchor or a centroid resolver")
	}
	if static != nil && static.ToleranceKm < 0 {
		return nil, fmt.Errorf("static anchor tolerance must be non-negative, got %f", static.ToleranceKm)
	}
	if cityToleranceKm < 0 {
		return nil, fmt.Errorf("city tolerance must be non-negative, got %f", cityToleranceKm)
	}
	if policy != PolicyAccept && policy != PolicyReject {
		return nil, fmt.Errorf("unknown geofence policy: %s", policy)
	}

	return &Validator{
		static:          static,
		cityToleranceKm: cityToleranceKm,
		centroids:       centroids,
		policy:          policy,
		log:             log,
	}, nil
}

// Validate checks a candidate coordinate against the best anchor available
// for the given city/state. An empty city skips dynamic anchoring.
func (v *Validator) Validate(ctx context.Context, candidate models.Coordinates, city, state string) Verdict {
	anchor, ok := v.anchorFor(ctx, city, state)
	if !ok {
		v.log.DebugContext(ctx, "No geofence anchor resolvable, applying policy",
			"city", city, "state", state, "policy", string(v.policy))
		return Verdict{
			Within:        v.policy == PolicyAccept,
			Indeterminate: true,
		}
	}

	dist := DistanceKm(candidate, anchor.Coordinate)
	return Verdict{
		Within:     dist <= anchor.ToleranceKm,
		DistanceKm: dist,
		Anchor:     anchor,
	}
}

// StaticDistanceKm returns the candidate's distance to the static anchor,
// for operator display. ok is false when no static anchor is configured.
func (v *Validator) StaticDistanceKm(candidate models.Coordinates) (float64, Anchor, bool) {
	if v.static == nil {
		return 0, Anchor{}, false
	}
	return DistanceKm(candidate, v.static.Coordinate), *v.static, true
}

func (v *Validator) anchorFor(ctx context.Context, city, state string) (Anchor, bool) {
	if city != "" && v.centroids != nil {
		query := geocoding.Query{City: city, State: state, Country: "Brazil"}
		result := v.centroids.Resolve(ctx, query)
		if result.Status == geocoding.StatusFound {
			return Anchor{
				Coordinate:  result.Candidate.Coordinates,
				ToleranceKm: v.cityToleranceKm,
				Label:       fmt.Sprintf("centroid of %s", query.String()),
			}, true
		}
		v.log.DebugContext(ctx, "City centroid not resolvable, falling back to static anchor",
			"city", city, "state", state)
	}

	if v.static != nil {
		return *v.static, true
	}

	return Anchor{}, false
}
