package geocoding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledax/geoetl/internal/geocache"
	"github.com/ledax/geoetl/internal/models"
	"googlemaps.github.io/maps"
)

// googleCacheKind prefixes cache keys written by this client.
const googleCacheKind = "GOOGLE"

// GoogleClient implements FreeTextProvider using the Google Maps Geocoding
// API. Rate limiting is handled by the maps client itself, so unlike the
// Nominatim client no external limiter is carried.
type GoogleClient struct {
	client GoogleAPIClient // client is the Google Maps API client
	cache  *geocache.Cache // Shared lookup cache
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleClient wraps an initialized Google Maps API client.
func NewGoogleClient(client GoogleAPIClient, cache *geocache.Cache, log *slog.Logger) *GoogleClient {
	return &GoogleClient{client: client, cache: cache, log: log}
}

// Resolve geocodes the query through Google Maps. Structured queries are
// rendered to a single address string; Google's own parser handles the
// component split better than its component filter does for Brazilian
// addresses.
func (gc *GoogleClient) Resolve(ctx context.Context, query Query) Result {
	key := gc.cacheKey(query)
	if entry, ok := gc.cache.Lookup(key); ok {
		gc.log.DebugContext(ctx, "Google cache hit", "query", query.String(), "found", entry.Found())
		return gc.resultFromCache(query, entry)
	}

	gc.log.DebugContext(ctx, "Geocoding using Google Maps", "query", query.String())

	req := maps.GeocodingRequest{Address: query.String(), Region: "br"}
	geocodeResponse, err := gc.client.Geocode(ctx, &req)
	if err != nil {
		return Transient(fmt.Errorf("failed to geocode address: %w", err))
	}

	if len(geocodeResponse) == 0 {
		gc.cache.StoreMiss(key)
		return NotFound()
	}

	top := geocodeResponse[0]
	coords := models.Coordinates{
		Latitude:  top.Geometry.Location.Lat,
		Longitude: top.Geometry.Location.Lng,
	}
	city, state := googleLocality(top)

	gc.cache.Store(key, geocache.Entry{
		Latitude:    &coords.Latitude,
		Longitude:   &coords.Longitude,
		DisplayName: top.FormattedAddress,
		City:        city,
		State:       state,
	})

	gc.log.InfoContext(ctx, "Google found result",
		"query", query.String(), "lat", coords.Latitude, "lon", coords.Longitude)

	return Found(gc.candidate(query, coords, top.FormattedAddress, city, state))
}

func (gc *GoogleClient) cacheKey(query Query) string {
	if query.Structured() {
		return geocache.StructuredKey(googleCacheKind, query.Fields())
	}
	return geocache.Key(googleCacheKind, query.Text)
}

func (gc *GoogleClient) resultFromCache(query Query, entry geocache.Entry) Result {
	if !entry.Found() {
		return NotFound()
	}

	return Found(gc.candidate(query,
		models.Coordinates{Latitude: *entry.Latitude, Longitude: *entry.Longitude},
		entry.DisplayName, entry.City, entry.State))
}

func (gc *GoogleClient) candidate(
	query Query,
	coords models.Coordinates,
	display, city, state string,
) models.GeoCandidate {
	return models.GeoCandidate{
		Coordinates: coords,
		Provenance:  fmt.Sprintf("Google (%s)", query.String()),
		DisplayName: display,
		City:        city,
		State:       state,
	}
}

// googleLocality extracts city and state from the address components of a
// geocoding result.
func googleLocality(result maps.GeocodingResult) (string, string) {
	var city, state string
	for _, component := range result.AddressComponents {
		for _, typ := range component.Types {
			switch typ {
			case "locality", "administrative_area_level_2":
				if city == "" {
					city = component.LongName
				}
			case "administrative_area_level_1":
				state = component.ShortName
			}
		}
	}

	return city, state
}
