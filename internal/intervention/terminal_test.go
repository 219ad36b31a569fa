package intervention_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ledax/geoetl/internal/geocoding"
	"github.com/ledax/geoetl/internal/geofence"
	"github.com/ledax/geoetl/internal/intervention"
	"github.com/ledax/geoetl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	result geocoding.Result
	calls  []geocoding.Query
}

func (f *fakeLookup) Resolve(_ context.Context, query geocoding.Query) geocoding.Result {
	f.calls = append(f.calls, query)
	return f.result
}

func salvadorValidator(t *testing.T) *geofence.Validator {
	t.Helper()

	fence, err := geofence.NewValidator(
		&geofence.Anchor{
			Coordinate:  models.Coordinates{Latitude: -12.9714, Longitude: -38.5014},
			ToleranceKm: 150,
			Label:       "Salvador",
		},
		nil, 0, geofence.PolicyAccept, slog.Default(),
	)
	require.NoError(t, err)

	return fence
}

func sampleRequest() intervention.Request {
	return intervention.Request{
		Record: models.AddressRecord{
			Label:      "Mercado Central",
			Address:    "RUA CHILE, 10",
			PostalCode: "40020-000",
			City:       "Salvador",
			State:      "BA",
		},
		Best: &models.GeoCandidate{
			Coordinates: models.Coordinates{Latitude: -23.5505, Longitude: -46.6333},
			Provenance:  "Nominatim (RUA CHILE, 10)",
			DisplayName: "Rua Chile, São Paulo",
		},
		BestDistanceKm: 1453,
		Reason:         models.ReasonOutOfGeofence,
	}
}

func TestTerminal_Resolve(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("skip leaves the record unresolved", func(t *testing.T) {
		var out bytes.Buffer
		term := intervention.NewTerminal(strings.NewReader("s\n"), &out, &fakeLookup{}, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.False(t, result.Resolved)
		assert.Equal(t, models.ReasonSkippedByOperator, result.Reason)
		assert.Contains(t, out.String(), "INTERVENTION NEEDED")
		assert.Contains(t, out.String(), "Mercado Central")
	})

	t.Run("accept takes the suggested candidate", func(t *testing.T) {
		var out bytes.Buffer
		term := intervention.NewTerminal(strings.NewReader("a\n"), &out, &fakeLookup{}, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.True(t, result.Resolved)
		assert.InEpsilon(t, -23.5505, result.Coordinate.Latitude, 0.0001)
		assert.Equal(t, "Manually approved (geofence warning): Rua Chile, São Paulo", result.Provenance)
		assert.Contains(t, out.String(), "WARNING")
	})

	t.Run("accept without a candidate reprompts", func(t *testing.T) {
		var out bytes.Buffer
		req := sampleRequest()
		req.Best = nil
		req.Reason = models.ReasonNotFound

		term := intervention.NewTerminal(strings.NewReader("a\ns\n"), &out, &fakeLookup{}, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, req)

		require.NoError(t, err)
		assert.False(t, result.Resolved)
		assert.Contains(t, out.String(), "No automatic candidate to accept.")
	})

	t.Run("google link is printed escaped", func(t *testing.T) {
		var out bytes.Buffer
		term := intervention.NewTerminal(strings.NewReader("g\ns\n"), &out, &fakeLookup{}, salvadorValidator(t), logger)

		_, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.Contains(t, out.String(), "https://www.google.com/maps/search/Mercado+Central+RUA+CHILE%2C+10")
	})

	t.Run("manual query resolves after confirmation", func(t *testing.T) {
		var out bytes.Buffer
		lookup := &fakeLookup{
			result: geocoding.Found(models.GeoCandidate{
				Coordinates: models.Coordinates{Latitude: -12.9714, Longitude: -38.5014},
				DisplayName: "Rua Chile, Centro, Salvador",
			}),
		}

		term := intervention.NewTerminal(
			strings.NewReader("m\nRua Chile, Salvador\ny\n"), &out, lookup, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.True(t, result.Resolved)
		assert.Equal(t, "Manual: Rua Chile, Centro, Salvador", result.Provenance)
		require.Len(t, lookup.calls, 1)
		assert.Equal(t, "Rua Chile, Salvador", lookup.calls[0].Text)
		assert.Contains(t, out.String(), "Distance from Salvador: 0.0 km")
	})

	t.Run("rejected manual hit returns to the menu", func(t *testing.T) {
		var out bytes.Buffer
		lookup := &fakeLookup{
			result: geocoding.Found(models.GeoCandidate{
				Coordinates: models.Coordinates{Latitude: -23.5505, Longitude: -46.6333},
				DisplayName: "Rua Chile, São Paulo",
			}),
		}

		term := intervention.NewTerminal(
			strings.NewReader("m\nRua Chile\nn\ns\n"), &out, lookup, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.False(t, result.Resolved)
		assert.Equal(t, models.ReasonSkippedByOperator, result.Reason)
		assert.Contains(t, out.String(), "still far outside the expected area")
	})

	t.Run("manual query with no hit returns to the menu", func(t *testing.T) {
		var out bytes.Buffer
		lookup := &fakeLookup{result: geocoding.NotFound()}

		term := intervention.NewTerminal(strings.NewReader("m\nnowhere\ns\n"), &out, lookup, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.False(t, result.Resolved)
		assert.Contains(t, out.String(), "Nothing found.")
	})

	t.Run("unknown option reprompts", func(t *testing.T) {
		var out bytes.Buffer
		term := intervention.NewTerminal(strings.NewReader("x\ns\n"), &out, &fakeLookup{}, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.NoError(t, err)
		assert.False(t, result.Resolved)
		assert.Contains(t, out.String(), "Unknown option.")
	})

	t.Run("closed input surfaces an error", func(t *testing.T) {
		var out bytes.Buffer
		term := intervention.NewTerminal(strings.NewReader(""), &out, &fakeLookup{}, salvadorValidator(t), logger)

		result, err := term.Resolve(ctx, sampleRequest())

		require.Error(t, err)
		assert.False(t, result.Resolved)
		assert.Equal(t, models.ReasonSkippedByOperator, result.Reason)
	})
}
