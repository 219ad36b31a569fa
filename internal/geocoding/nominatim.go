package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ledax/geoetl/internal/geocache"
	"github.com/ledax/geoetl/internal/models"
	"golang.org/x/time/rate"
)

// NominatimBaseURL -- OpenStreetMap Nominatim search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// nominatimCacheKind prefixes cache keys written by this client.
const nominatimCacheKind = "NOMINATIM"

// NominatimClient implements FreeTextProvider using OpenStreetMap's Nominatim
// API. The service is free but enforces a fair-use policy of roughly one
// request per second, so every call serializes through a shared limiter;
// all callers of one client instance share the same pacing.
type NominatimClient struct {
	client  HTTPClient      // HTTP client for making requests
	baseURL string          // Base URL for the Nominatim API
	cache   *geocache.Cache // Shared lookup cache
	log     *slog.Logger    // Logger for logging operations
	limiter *rate.Limiter   // Process-wide limiter enforcing the minimum delay
	// userAgent is required by Nominatim usage policy
	userAgent string
	// countryCodes restricts results to the given countries ("br").
	countryCodes string
}

// nominatimResult represents one entry of the JSON response from Nominatim.
type nominatimResult struct {
	Lat         string `json:"lat"`          // Latitude as string
	Lon         string `json:"lon"`          // Longitude as string
	DisplayName string `json:"display_name"` // Resolved display address
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
	} `json:"address"`
}

// NewNominatimClient creates a Nominatim client with the public endpoint.
// minDelay is the minimum wall-clock gap enforced between consecutive
// requests, shared across all callers.
func NewNominatimClient(cache *geocache.Cache, minDelay time.Duration, log *slog.Logger) *NominatimClient {
	const timeout = 10
	return NewNominatimClientWithClient(
		&http.Client{Timeout: timeout * time.Second},
		cache,
		rate.NewLimiter(rate.Every(minDelay), 1),
		log,
	)
}

// NewNominatimClientWithClient creates a Nominatim client with a custom HTTP
// client and limiter. Useful for testing with mocked HTTP clients.
func NewNominatimClientWithClient(
	client HTTPClient,
	cache *geocache.Cache,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimClient {
	return &NominatimClient{
		client:  client,
		baseURL: NominatimBaseURL,
		cache:   cache,
		log:     log,
		limiter: limiter,
		// User-Agent MUST include valid contact info per Nominatim usage policy:
		// https://operations.osmfoundation.org/policies/nominatim/
		userAgent:    "geoetl/1.0 (https://github.com/ledax/geoetl)",
		countryCodes: "br",
	}
}

// Resolve converts a free-text or structured query to coordinates. Cached
// results, positive or negative, short-circuit the network call and the rate
// limiter alike.
func (nc *NominatimClient) Resolve(ctx context.Context, query Query) Result {
	key := nc.cacheKey(query)
	if entry, ok := nc.cache.Lookup(key); ok {
		nc.log.DebugContext(ctx, "Nominatim cache hit", "query", query.String(), "found", entry.Found())
		return nc.resultFromCache(query, entry)
	}

	if err := nc.limiter.Wait(ctx); err != nil {
		return Transient(fmt.Errorf("rate limiter wait interrupted: %w", err))
	}

	nc.log.DebugContext(ctx, "Geocoding using Nominatim", "query", query.String())

	reqURL, err := nc.buildURL(query)
	if err != nil {
		return Transient(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Transient(fmt.Errorf("failed to create request: %w", err))
	}

	// Set required headers per Nominatim usage policy
	req.Header.Set("User-Agent", nc.userAgent)
	req.Header.Set("Accept-Language", "pt-BR,en")

	resp, err := nc.client.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("failed to execute geocoding request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		nc.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return Transient(fmt.Errorf("nominatim API returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	var results []nominatimResult
	if err = json.Unmarshal(body, &results); err != nil {
		nc.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return Transient(fmt.Errorf("failed to decode nominatim response: %w", err))
	}

	if len(results) == 0 {
		nc.log.DebugContext(ctx, "Nominatim returned no results", "query", query.String())
		nc.cache.StoreMiss(key)
		return NotFound()
	}

	top := results[0]

	var lat, lon float64
	if _, err = fmt.Sscanf(top.Lat, "%f", &lat); err != nil {
		nc.cache.StoreMiss(key)
		return Transient(fmt.Errorf("nominatim returned invalid latitude %q", top.Lat))
	}
	if _, err = fmt.Sscanf(top.Lon, "%f", &lon); err != nil {
		nc.cache.StoreMiss(key)
		return Transient(fmt.Errorf("nominatim returned invalid longitude %q", top.Lon))
	}

	city := top.Address.City
	if city == "" {
		city = top.Address.Town
	}
	if city == "" {
		city = top.Address.Village
	}

	nc.cache.Store(key, geocache.Entry{
		Latitude:    &lat,
		Longitude:   &lon,
		DisplayName: top.DisplayName,
		City:        city,
		State:       top.Address.State,
	})

	nc.log.InfoContext(ctx, "Nominatim found result", "query", query.String(), "lat", lat, "lon", lon)

	return Found(nc.candidate(query, models.Coordinates{Latitude: lat, Longitude: lon},
		top.DisplayName, city, top.Address.State))
}

func (nc *NominatimClient) cacheKey(query Query) string {
	if query.Structured() {
		return geocache.StructuredKey(nominatimCacheKind, query.Fields())
	}
	return geocache.Key(nominatimCacheKind, query.Text)
}

func (nc *NominatimClient) buildURL(query Query) (string, error) {
	reqURL, err := url.Parse(nc.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	if query.Structured() {
		for field, value := range query.Fields() {
			if value != "" {
				params.Set(field, value)
			}
		}
	} else {
		params.Set("q", query.Text)
	}
	params.Set("format", "json")
	params.Set("limit", "1")          // Only need the top result
	params.Set("addressdetails", "1") // Include address breakdown for geofence anchoring
	if nc.countryCodes != "" {
		params.Set("countrycodes", nc.countryCodes)
	}
	reqURL.RawQuery = params.Encode()

	return reqURL.String(), nil
}

func (nc *NominatimClient) resultFromCache(query Query, entry geocache.Entry) Result {
	if !entry.Found() {
		return NotFound()
	}

	return Found(nc.candidate(query,
		models.Coordinates{Latitude: *entry.Latitude, Longitude: *entry.Longitude},
		entry.DisplayName, entry.City, entry.State))
}

func (nc *NominatimClient) candidate(
	query Query,
	coords models.Coordinates,
	display, city, state string,
) models.GeoCandidate {
	return models.GeoCandidate{
		Coordinates: coords,
		Provenance:  fmt.Sprintf("Nominatim (%s)", query.String()),
		DisplayName: display,
		City:        city,
		State:       state,
	}
}
