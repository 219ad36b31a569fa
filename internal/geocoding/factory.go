package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledax/geoetl/internal/geocache"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of free-text geocoding provider.
type ProviderType string

const (
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
)

// ProviderConfig holds configuration for creating a free-text provider.
type ProviderConfig struct {
	Type     ProviderType    // Type of provider to create
	APIKey   string          // API key (used by Google provider)
	MinDelay time.Duration   // Minimum delay between requests (used by Nominatim)
	Cache    *geocache.Cache // Shared lookup cache
	Logger   *slog.Logger    // Logger for the provider
}

// NewFreeTextProvider creates a free-text geocoding provider based on the
// provided configuration. It applies the Factory pattern to decouple provider
// instantiation from business logic.
//
// Supported provider types:
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
// - "google": Google Maps Geocoding API (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewFreeTextProvider(config ProviderConfig) (FreeTextProvider, error) {
	switch config.Type {
	case ProviderTypeNominatim:
		return newNominatimProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newNominatimProvider creates a Nominatim geocoding provider.
func newNominatimProvider(config ProviderConfig) (FreeTextProvider, error) {
	// Nominatim is free and doesn't require an API key, but its fair-use
	// policy demands a minimum gap between requests.
	if config.MinDelay <= 0 {
		config.MinDelay = time.Second
		config.Logger.Warn("Minimum request delay for Nominatim not set, using default", "value", config.MinDelay)
	}

	return NewNominatimClient(config.Cache, config.MinDelay, config.Logger), nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (FreeTextProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	// The maps client rate-limits internally; derive requests-per-second
	// from the configured minimum delay.
	if config.MinDelay > 0 {
		if rps := int(time.Second / config.MinDelay); rps > 0 {
			clientOpts = append(clientOpts, maps.WithRateLimit(rps))
		}
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleClient(client, config.Cache, config.Logger), nil
}
