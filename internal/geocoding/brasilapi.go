package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ledax/geoetl/internal/geocache"
	"github.com/ledax/geoetl/internal/models"
)

// BrasilAPIBaseURL -- BrasilAPI CEP v1 endpoint.
const BrasilAPIBaseURL = "https://brasilapi.com.br/api/cep/v1"

// brasilAPICacheKind prefixes cache keys written by this client.
const brasilAPICacheKind = "BRASILAPI"

// BrasilAPIClient resolves Brazilian postal codes (CEPs) to coordinates
// through the BrasilAPI directory. Lookups are exact and fast; the service
// needs no API key and imposes no inter-request delay.
type BrasilAPIClient struct {
	client  HTTPClient      // HTTP client for making requests
	baseURL string          // Base URL for the BrasilAPI CEP endpoint
	cache   *geocache.Cache // Shared lookup cache
	log     *slog.Logger    // Logger for logging operations
}

// NewBrasilAPIClient creates a postal-code client backed by the public
// BrasilAPI endpoint.
func NewBrasilAPIClient(cache *geocache.Cache, log *slog.Logger) *BrasilAPIClient {
	const timeout = 5
	return &BrasilAPIClient{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: BrasilAPIBaseURL,
		cache:   cache,
		log:     log,
	}
}

// NewBrasilAPIClientWithClient allows injecting a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewBrasilAPIClientWithClient(client HTTPClient, cache *geocache.Cache, log *slog.Logger) *BrasilAPIClient {
	return &BrasilAPIClient{
		client:  client,
		baseURL: BrasilAPIBaseURL,
		cache:   cache,
		log:     log,
	}
}

// brasilAPIPayload is the common envelope of a BrasilAPI CEP response.
// The coordinate block changed type between API revisions, so it is kept
// raw and decoded by parseBrasilAPICoordinates.
type brasilAPIPayload struct {
	CEP          string `json:"cep"`
	State        string `json:"state"`
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	Location     struct {
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"location"`
}

// brasilAPICoordsText is the current response shape: coordinates as strings.
type brasilAPICoordsText struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// brasilAPICoordsNumeric is the legacy response shape: coordinates as numbers.
type brasilAPICoordsNumeric struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// parseBrasilAPICoordinates maps both known coordinate shapes to a pair of
// floats. ok is false when the block is absent or unparsable; BrasilAPI
// knows many CEPs without having coordinates for them.
func parseBrasilAPICoordinates(raw json.RawMessage) (models.Coordinates, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Coordinates{}, false
	}

	var text brasilAPICoordsText
	if err := json.Unmarshal(raw, &text); err == nil && text.Latitude != "" && text.Longitude != "" {
		lat, errLat := strconv.ParseFloat(text.Latitude, 64)
		lon, errLon := strconv.ParseFloat(text.Longitude, 64)
		if errLat == nil && errLon == nil {
			return models.Coordinates{Latitude: lat, Longitude: lon}, true
		}
		return models.Coordinates{}, false
	}

	var numeric brasilAPICoordsNumeric
	if err := json.Unmarshal(raw, &numeric); err == nil && (numeric.Latitude != 0 || numeric.Longitude != 0) {
		return models.Coordinates{Latitude: numeric.Latitude, Longitude: numeric.Longitude}, true
	}

	return models.Coordinates{}, false
}

// ResolvePostalCode looks up an 8-digit postal code. HTTP failures and
// malformed bodies are swallowed and reported as not-found; only transport
// errors surface as transient.
func (bc *BrasilAPIClient) ResolvePostalCode(ctx context.Context, postalCode string) Result {
	digits := strings.ReplaceAll(strings.TrimSpace(postalCode), "-", "")
	const cepLength = 8
	if len(digits) != cepLength {
		return NotFound()
	}

	key := geocache.Key(brasilAPICacheKind, digits)
	if entry, ok := bc.cache.Lookup(key); ok {
		return bc.resultFromCache(postalCode, entry)
	}

	bc.log.DebugContext(ctx, "Looking up postal code via BrasilAPI", "cep", digits)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", bc.baseURL, digits), nil)
	if err != nil {
		return Transient(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := bc.client.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("failed to execute postal code request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		bc.log.WarnContext(ctx, "BrasilAPI returned non-OK status",
			"cep", digits, "status", resp.StatusCode, "body", string(body))
		bc.cache.StoreMiss(key)
		return NotFound()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(fmt.Errorf("failed to read response body: %w", err))
	}

	var payload brasilAPIPayload
	if err = json.Unmarshal(body, &payload); err != nil {
		bc.log.WarnContext(ctx, "Failed to parse BrasilAPI response", "cep", digits, "error", err)
		bc.cache.StoreMiss(key)
		return NotFound()
	}

	coords, ok := parseBrasilAPICoordinates(payload.Location.Coordinates)
	if !ok {
		bc.log.DebugContext(ctx, "BrasilAPI response has no coordinates", "cep", digits)
		bc.cache.StoreMiss(key)
		return NotFound()
	}

	display := formatBrasilAPIAddress(payload)
	bc.cache.Store(key, geocache.Entry{
		Latitude:    &coords.Latitude,
		Longitude:   &coords.Longitude,
		DisplayName: display,
		City:        payload.City,
		State:       payload.State,
	})

	bc.log.InfoContext(ctx, "BrasilAPI found result", "cep", digits, "lat", coords.Latitude, "lon", coords.Longitude)

	return Found(bc.candidate(postalCode, coords, display, payload.City, payload.State))
}

func (bc *BrasilAPIClient) resultFromCache(postalCode string, entry geocache.Entry) Result {
	if !entry.Found() {
		return NotFound()
	}

	coords := models.Coordinates{Latitude: *entry.Latitude, Longitude: *entry.Longitude}
	return Found(bc.candidate(postalCode, coords, entry.DisplayName, entry.City, entry.State))
}

func (bc *BrasilAPIClient) candidate(
	postalCode string,
	coords models.Coordinates,
	display, city, state string,
) models.GeoCandidate {
	return models.GeoCandidate{
		Coordinates: coords,
		Provenance:  fmt.Sprintf("BrasilAPI (CEP: %s)", postalCode),
		DisplayName: display,
		City:        city,
		State:       state,
	}
}

func formatBrasilAPIAddress(payload brasilAPIPayload) string {
	return fmt.Sprintf("%s, %s, %s - %s",
		payload.Street, payload.Neighborhood, payload.City, payload.State)
}
